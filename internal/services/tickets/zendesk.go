package tickets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/httpclient"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
	"golang.org/x/time/rate"
)

const zendeskRateLimit = 5

// ZendeskProvider implements interfaces.TicketProvider over the Zendesk
// Support API. Comment bodies arrive as HTML and are converted to markdown
// before sanitization. Zendesk has no workflow transitions in the Jira sense,
// so TransitionTicket reports the capability as unsupported.
type ZendeskProvider struct {
	baseURL     string
	bearerToken string
	email       string
	apiToken    string
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      arbor.ILogger
}

// ZendeskOption configures the ZendeskProvider.
type ZendeskOption func(*ZendeskProvider)

// WithZendeskHTTPClient sets a custom HTTP client.
func WithZendeskHTTPClient(client *http.Client) ZendeskOption {
	return func(p *ZendeskProvider) {
		p.httpClient = client
	}
}

// NewZendeskOAuthProvider creates a Zendesk provider authenticated with an
// OAuth access token.
func NewZendeskOAuthProvider(siteURL, accessToken string, logger arbor.ILogger, opts ...ZendeskOption) *ZendeskProvider {
	p := newZendeskProvider(siteURL, logger, opts...)
	p.bearerToken = accessToken
	return p
}

// NewZendeskBasicProvider creates a Zendesk provider authenticated with a
// static API token and account email.
func NewZendeskBasicProvider(siteURL, email, apiToken string, logger arbor.ILogger, opts ...ZendeskOption) *ZendeskProvider {
	p := newZendeskProvider(siteURL, logger, opts...)
	p.email = email
	p.apiToken = apiToken
	return p
}

func newZendeskProvider(siteURL string, logger arbor.ILogger, opts ...ZendeskOption) *ZendeskProvider {
	p := &ZendeskProvider{
		baseURL:    strings.TrimRight(siteURL, "/"),
		httpClient: httpclient.NewDefaultHTTPClient(15 * time.Second),
		limiter:    rate.NewLimiter(rate.Limit(zendeskRateLimit), zendeskRateLimit),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Type returns the concrete provider type.
func (p *ZendeskProvider) Type() models.ProviderType {
	return models.ProviderTypeZendesk
}

// CreateTicket submits a new ticket with the ownership marker embedded in the
// first comment (Zendesk's description).
func (p *ZendeskProvider) CreateTicket(ctx context.Context, input *models.TicketInput) (*models.CreateResult, error) {
	payload := map[string]interface{}{
		"ticket": map[string]interface{}{
			"subject": input.Summary,
			"comment": map[string]string{
				"body": EmbedOwner(input.Description, input.OwnerID, input.DisplayName),
			},
		},
	}

	data, err := p.makeRequest(ctx, "POST", "/api/v2/tickets.json", payload)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Zendesk ticket creation failed")
		return &models.CreateResult{Success: false, Error: "failed to create ticket"}, nil
	}

	var created struct {
		Ticket struct {
			ID int64 `json:"id"`
		} `json:"ticket"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("failed to parse create response: %w", err)
	}

	id := strconv.FormatInt(created.Ticket.ID, 10)
	p.logger.Info().Str("ticket", id).Msg("Created Zendesk ticket")
	return &models.CreateResult{Success: true, TicketID: id}, nil
}

// ListTickets searches tickets whose description carries the owner's marker
// and verifies each extracted marker before returning it.
func (p *ZendeskProvider) ListTickets(ctx context.Context, ownerID string) ([]*models.TicketListItem, error) {
	query := fmt.Sprintf("type:ticket %q", ownerIDLabel+" "+ownerID)
	path := "/api/v2/search.json?query=" + url.QueryEscape(query)

	data, err := p.makeRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search tickets: %w", err)
	}

	var result struct {
		Results []struct {
			ID          int64  `json:"id"`
			Subject     string `json:"subject"`
			Description string `json:"description"`
			Status      string `json:"status"`
			UpdatedAt   string `json:"updated_at"`
		} `json:"results"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	items := make([]*models.TicketListItem, 0, len(result.Results))
	for _, r := range result.Results {
		if ExtractOwner(r.Description) != ownerID {
			continue
		}
		items = append(items, &models.TicketListItem{
			ID:             strconv.FormatInt(r.ID, 10),
			Summary:        r.Subject,
			Status:         r.Status,
			StatusCategory: NormalizeZendeskStatus(r.Status),
			UpdatedAt:      parseZendeskTime(r.UpdatedAt),
		})
	}
	return items, nil
}

// GetTicket fetches the full ticket with comments and verifies ownership.
// Returns (nil, nil) on not-found and on ownership mismatch.
func (p *ZendeskProvider) GetTicket(ctx context.Context, ticketID, ownerID string) (*models.Ticket, error) {
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
// owner id extracted from the embedded marker.
func (p *ZendeskProvider) GetTicketUnguarded(ctx context.Context, ticketID string) (*models.Ticket, string, error) {
	data, err := p.makeRequest(ctx, "GET", "/api/v2/tickets/"+url.PathEscape(ticketID)+".json", nil)
	if err != nil {
		if isNotFound(err) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("failed to fetch ticket: %w", err)
	}

	var fetched struct {
		Ticket struct {
			ID          int64  `json:"id"`
			Subject     string `json:"subject"`
			Description string `json:"description"`
			Status      string `json:"status"`
			RequesterID int64  `json:"requester_id"`
		} `json:"ticket"`
	}
	if err := json.Unmarshal(data, &fetched); err != nil {
		return nil, "", fmt.Errorf("failed to parse ticket: %w", err)
	}

	comments, err := p.fetchComments(ctx, ticketID)
	if err != nil {
		return nil, "", err
	}

	description := fetched.Ticket.Description
	if len(comments) > 0 {
		// The first comment is the authoritative description body.
		description = comments[0].body
	}
	owner := ExtractOwner(description)

	ticket := &models.Ticket{
		ID:             strconv.FormatInt(fetched.Ticket.ID, 10),
		Summary:        fetched.Ticket.Subject,
		Description:    Sanitize(description),
		Status:         fetched.Ticket.Status,
		StatusCategory: NormalizeZendeskStatus(fetched.Ticket.Status),
	}

	// Skip the first comment: it is the description, not a reply.
	for i, c := range comments {
		if i == 0 {
			continue
		}
		commentOwner := ExtractOwner(c.body)
		ticket.Comments = append(ticket.Comments, models.Comment{
			ID:      c.id,
			Author:  c.author,
			Body:    Sanitize(c.body),
			Staff:   owner == "" || commentOwner != owner,
			Created: c.created,
		})
	}

	return ticket, owner, nil
}

// AddComment verifies ownership then appends a public comment with the marker
// re-embedded.
func (p *ZendeskProvider) AddComment(ctx context.Context, ticketID string, input *models.CommentInput) (bool, error) {
	ticket, owner, err := p.GetTicketUnguarded(ctx, ticketID)
	if err != nil {
		return false, err
	}
	if ticket == nil || owner != input.OwnerID {
		return false, nil
	}

	payload := map[string]interface{}{
		"ticket": map[string]interface{}{
			"comment": map[string]interface{}{
				"body":   EmbedOwner(input.Body, input.OwnerID, ""),
				"public": true,
			},
		},
	}
	if _, err := p.makeRequest(ctx, "PUT", "/api/v2/tickets/"+url.PathEscape(ticketID)+".json", payload); err != nil {
		p.logger.Warn().Err(err).Str("ticket", ticketID).Msg("Zendesk comment creation failed")
		return false, fmt.Errorf("failed to add comment: %w", err)
	}
	return true, nil
}

// TransitionTicket reports the transition capability as unsupported: Zendesk
// status changes are driven by agent workflow, not by this service.
func (p *ZendeskProvider) TransitionTicket(ctx context.Context, ticketID, targetStatus string) (bool, error) {
	return false, nil
}

type zendeskComment struct {
	id      string
	author  string
	body    string
	created time.Time
}

func (p *ZendeskProvider) fetchComments(ctx context.Context, ticketID string) ([]zendeskComment, error) {
	data, err := p.makeRequest(ctx, "GET", "/api/v2/tickets/"+url.PathEscape(ticketID)+"/comments.json", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comments: %w", err)
	}

	var result struct {
		Comments []struct {
			ID        int64  `json:"id"`
			AuthorID  int64  `json:"author_id"`
			Body      string `json:"body"`
			HTMLBody  string `json:"html_body"`
			CreatedAt string `json:"created_at"`
		} `json:"comments"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse comments: %w", err)
	}

	comments := make([]zendeskComment, 0, len(result.Comments))
	for _, c := range result.Comments {
		body := c.Body
		if body == "" && c.HTMLBody != "" {
			body = p.convertHTMLBody(c.HTMLBody)
		}
		comments = append(comments, zendeskComment{
			id:      strconv.FormatInt(c.ID, 10),
			author:  strconv.FormatInt(c.AuthorID, 10),
			body:    body,
			created: parseZendeskTime(c.CreatedAt),
		})
	}
	return comments, nil
}

// convertHTMLBody converts an HTML comment body to markdown, falling back to
// tag stripping when conversion fails.
func (p *ZendeskProvider) convertHTMLBody(htmlBody string) string {
	converter := md.NewConverter(p.baseURL, true, nil)
	converted, err := converter.ConvertString(htmlBody)
	if err != nil {
		p.logger.Warn().Err(err).Msg("HTML to markdown conversion failed, stripping tags")
		return stripHTMLTags(htmlBody)
	}
	if strings.TrimSpace(converted) == "" && htmlBody != "" {
		return stripHTMLTags(htmlBody)
	}
	return converted
}

// stripHTMLTags removes basic HTML tags for fallback cases
func stripHTMLTags(htmlStr string) string {
	re := regexp.MustCompile(`<[^>]*>`)
	stripped := re.ReplaceAllString(htmlStr, "")

	spaceRe := regexp.MustCompile(`[ \t]+`)
	cleaned := spaceRe.ReplaceAllString(stripped, " ")

	return strings.TrimSpace(html.UnescapeString(cleaned))
}

func parseZendeskTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// makeRequest performs one API call. GETs are retried once on transient
// failure; writes are never retried.
func (p *ZendeskProvider) makeRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	data, err := p.doRequest(ctx, method, path, body)
	if err != nil && method == "GET" && isTransientUpstream(err) {
		p.logger.Debug().Err(err).Str("path", path).Msg("Retrying Zendesk read after transient failure")
		return p.doRequest(ctx, method, path, body)
	}
	return data, err
}

func (p *ZendeskProvider) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
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
		// Zendesk basic auth convention for API tokens.
		req.SetBasicAuth(p.email+"/token", p.apiToken)
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
		p.logger.Debug().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("body", string(data)).
			Msg("Zendesk API error response")
		return nil, &upstreamError{status: resp.StatusCode}
	}

	return data, nil
}

// Ensure interface compliance
var _ interfaces.TicketProvider = (*ZendeskProvider)(nil)
