package tickets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/httpclient"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
	"golang.org/x/time/rate"
)

const (
	// jiraTimeFormat is Jira's REST timestamp layout.
	jiraTimeFormat = "2006-01-02T15:04:05.000-0700"

	// jiraRateLimit is the request budget per second against one site.
	jiraRateLimit = 10

	jiraMaxResults = 50
)

// JiraProvider implements interfaces.TicketProvider over the Jira Cloud REST
// API. OAuth tenants go through api.atlassian.com with a bearer token; static
// token tenants hit their site URL with basic auth.
type JiraProvider struct {
	baseURL     string
	bearerToken string
	email       string
	apiToken    string
	projectKey  string
	issueType   string
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      arbor.ILogger
}

// JiraOption configures the JiraProvider.
type JiraOption func(*JiraProvider)

// WithJiraHTTPClient sets a custom HTTP client.
func WithJiraHTTPClient(client *http.Client) JiraOption {
	return func(p *JiraProvider) {
		p.httpClient = client
	}
}

// WithJiraBaseURL overrides the API base URL (tests).
func WithJiraBaseURL(baseURL string) JiraOption {
	return func(p *JiraProvider) {
		p.baseURL = baseURL
	}
}

// WithJiraIssueType overrides the issue type used for created tickets.
func WithJiraIssueType(issueType string) JiraOption {
	return func(p *JiraProvider) {
		p.issueType = issueType
	}
}

// NewJiraOAuthProvider creates a Jira provider authenticated with an OAuth
// access token, routed through the Atlassian API gateway for the cloud id.
func NewJiraOAuthProvider(cloudID, accessToken, projectKey string, logger arbor.ILogger, opts ...JiraOption) *JiraProvider {
	p := newJiraProvider(projectKey, logger, opts...)
	if p.baseURL == "" {
		p.baseURL = fmt.Sprintf("https://api.atlassian.com/ex/jira/%s", cloudID)
	}
	p.bearerToken = accessToken
	return p
}

// NewJiraBasicProvider creates a Jira provider authenticated with a static
// API token and account email against the tenant's site URL.
func NewJiraBasicProvider(cloudURL, email, apiToken, projectKey string, logger arbor.ILogger, opts ...JiraOption) *JiraProvider {
	p := newJiraProvider(projectKey, logger, opts...)
	if p.baseURL == "" {
		p.baseURL = cloudURL
	}
	p.email = email
	p.apiToken = apiToken
	return p
}

func newJiraProvider(projectKey string, logger arbor.ILogger, opts ...JiraOption) *JiraProvider {
	p := &JiraProvider{
		projectKey: projectKey,
		issueType:  "Task",
		httpClient: httpclient.NewDefaultHTTPClient(15 * time.Second),
		limiter:    rate.NewLimiter(rate.Limit(jiraRateLimit), jiraRateLimit),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Type returns the concrete provider type.
func (p *JiraProvider) Type() models.ProviderType {
	return models.ProviderTypeJira
}

// CreateTicket submits a new issue with the ownership marker embedded in the
// description.
func (p *JiraProvider) CreateTicket(ctx context.Context, input *models.TicketInput) (*models.CreateResult, error) {
	payload := map[string]interface{}{
		"fields": map[string]interface{}{
			"project":     map[string]string{"key": p.projectKey},
			"issuetype":   map[string]string{"name": p.issueType},
			"summary":     input.Summary,
			"description": EmbedOwner(input.Description, input.OwnerID, input.DisplayName),
		},
	}

	data, err := p.makeRequest(ctx, "POST", "/rest/api/2/issue", payload)
	if err != nil {
		p.logger.Warn().Err(err).Str("project", p.projectKey).Msg("Jira issue creation failed")
		return &models.CreateResult{Success: false, Error: "failed to create ticket"}, nil
	}

	var created struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("failed to parse create response: %w", err)
	}

	p.logger.Info().Str("ticket", created.Key).Msg("Created Jira issue")
	return &models.CreateResult{Success: true, TicketID: created.Key}, nil
}

// ListTickets queries issues whose description carries the owner's marker and
// verifies each extracted marker before returning it.
func (p *JiraProvider) ListTickets(ctx context.Context, ownerID string) ([]*models.TicketListItem, error) {
	jql := fmt.Sprintf("project=%q AND description~%q ORDER BY updated DESC", p.projectKey, ownerIDLabel+" "+ownerID)
	path := fmt.Sprintf("/rest/api/2/search?jql=%s&maxResults=%d&fields=summary,status,description,updated",
		url.QueryEscape(jql), jiraMaxResults)

	data, err := p.makeRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}

	var result struct {
		Issues []jiraIssue `json:"issues"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	items := make([]*models.TicketListItem, 0, len(result.Issues))
	for _, issue := range result.Issues {
		// JQL text matching is fuzzy; trust only the extracted marker.
		if ExtractOwner(issue.Fields.Description) != ownerID {
			continue
		}
		items = append(items, &models.TicketListItem{
			ID:             issue.Key,
			Summary:        issue.Fields.Summary,
			Status:         issue.Fields.Status.Name,
			StatusCategory: NormalizeJiraCategory(issue.Fields.Status.StatusCategory.Key),
			UpdatedAt:      parseJiraTime(issue.Fields.Updated),
		})
	}
	return items, nil
}

// GetTicket fetches the full issue with comments and verifies ownership.
// Returns (nil, nil) on not-found and on ownership mismatch.
func (p *JiraProvider) GetTicket(ctx context.Context, ticketID, ownerID string) (*models.Ticket, error) {
	ticket, owner, err := p.GetTicketUnguarded(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket == nil || owner != ownerID {
		return nil, nil
	}
	return ticket, nil
}

// GetTicketUnguarded fetches without ownership verification, returning the
// owner id extracted from the embedded marker. Reserved for trusted
// server-initiated paths.
func (p *JiraProvider) GetTicketUnguarded(ctx context.Context, ticketID string) (*models.Ticket, string, error) {
	path := fmt.Sprintf("/rest/api/2/issue/%s?fields=summary,description,status,comment", url.PathEscape(ticketID))
	data, err := p.makeRequest(ctx, "GET", path, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("failed to fetch issue: %w", err)
	}

	var issue jiraIssue
	if err := json.Unmarshal(data, &issue); err != nil {
		return nil, "", fmt.Errorf("failed to parse issue: %w", err)
	}

	owner := ExtractOwner(issue.Fields.Description)

	ticket := &models.Ticket{
		ID:             issue.Key,
		Summary:        issue.Fields.Summary,
		Description:    Sanitize(issue.Fields.Description),
		Status:         issue.Fields.Status.Name,
		StatusCategory: NormalizeJiraCategory(issue.Fields.Status.StatusCategory.Key),
	}

	for _, c := range issue.Fields.Comment.Comments {
		commentOwner := ExtractOwner(c.Body)
		ticket.Comments = append(ticket.Comments, models.Comment{
			ID:      c.ID,
			Author:  c.Author.DisplayName,
			Body:    Sanitize(c.Body),
			Staff:   owner == "" || commentOwner != owner,
			Created: parseJiraTime(c.Created),
		})
	}

	return ticket, owner, nil
}

// AddComment verifies ownership then appends a comment with the marker
// re-embedded for audit continuity. Returns false when the ticket is absent
// or not owned by the caller.
func (p *JiraProvider) AddComment(ctx context.Context, ticketID string, input *models.CommentInput) (bool, error) {
	ticket, owner, err := p.GetTicketUnguarded(ctx, ticketID)
	if err != nil {
		return false, err
	}
	if ticket == nil || owner != input.OwnerID {
		return false, nil
	}

	payload := map[string]string{
		"body": EmbedOwner(input.Body, input.OwnerID, ""),
	}
	path := fmt.Sprintf("/rest/api/2/issue/%s/comment", url.PathEscape(ticketID))
	if _, err := p.makeRequest(ctx, "POST", path, payload); err != nil {
		p.logger.Warn().Err(err).Str("ticket", ticketID).Msg("Jira comment creation failed")
		return false, fmt.Errorf("failed to add comment: %w", err)
	}
	return true, nil
}

// TransitionTicket finds the workflow transition whose target status matches
// targetStatus (by transition name or destination status, case-insensitive)
// and executes it. Jira always supports transitions, so the first return is
// always true.
func (p *JiraProvider) TransitionTicket(ctx context.Context, ticketID, targetStatus string) (bool, error) {
	path := fmt.Sprintf("/rest/api/2/issue/%s/transitions", url.PathEscape(ticketID))
	data, err := p.makeRequest(ctx, "GET", path, nil)
	if err != nil {
		return true, fmt.Errorf("failed to list transitions: %w", err)
	}

	var result struct {
		Transitions []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			To   struct {
				Name string `json:"name"`
			} `json:"to"`
		} `json:"transitions"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return true, fmt.Errorf("failed to parse transitions: %w", err)
	}

	transitionID := ""
	for _, t := range result.Transitions {
		if equalFold(t.Name, targetStatus) || equalFold(t.To.Name, targetStatus) {
			transitionID = t.ID
			break
		}
	}
	if transitionID == "" {
		return true, fmt.Errorf("no transition to status %q", targetStatus)
	}

	payload := map[string]interface{}{
		"transition": map[string]string{"id": transitionID},
	}
	if _, err := p.makeRequest(ctx, "POST", path, payload); err != nil {
		return true, fmt.Errorf("failed to execute transition: %w", err)
	}

	p.logger.Info().Str("ticket", ticketID).Str("status", targetStatus).Msg("Transitioned Jira issue")
	return true, nil
}

// makeRequest performs one API call. GETs are retried once on transient
// failure (network error or 5xx); writes are never retried.
func (p *JiraProvider) makeRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	data, err := p.doRequest(ctx, method, path, body)
	if err != nil && method == "GET" && isTransientUpstream(err) {
		p.logger.Debug().Err(err).Str("path", path).Msg("Retrying Jira read after transient failure")
		return p.doRequest(ctx, method, path, body)
	}
	return data, err
}

func (p *JiraProvider) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.bearerToken)
	} else {
		req.SetBasicAuth(p.email, p.apiToken)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &upstreamError{err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		// Provider error bodies stay in the logs, never in responses.
		p.logger.Debug().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("body", string(data)).
			Msg("Jira API error response")
		return nil, &upstreamError{status: resp.StatusCode}
	}

	return data, nil
}

// jiraIssue is the subset of issue fields this service reads.
type jiraIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Updated     string `json:"updated"`
		Status      struct {
			Name           string `json:"name"`
			StatusCategory struct {
				Key string `json:"key"`
			} `json:"statusCategory"`
		} `json:"status"`
		Comment struct {
			Comments []struct {
				ID     string `json:"id"`
				Body   string `json:"body"`
				Author struct {
					DisplayName string `json:"displayName"`
				} `json:"author"`
				Created string `json:"created"`
			} `json:"comments"`
		} `json:"comment"`
	} `json:"fields"`
}

func parseJiraTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(jiraTimeFormat, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Ensure interface compliance
var _ interfaces.TicketProvider = (*JiraProvider)(nil)
