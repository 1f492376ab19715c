package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/httpclient"
	"golang.org/x/time/rate"
)

const (
	defaultDiscordBaseURL = "https://discord.com/api/v10"

	// discordRateLimit stays well under Discord's global 50 req/s budget.
	discordRateLimit = 10
)

// DiscordClient is a minimal Discord REST client covering the three calls the
// dispatcher needs: open a DM channel, post a message, edit a message.
type DiscordClient struct {
	baseURL    string
	botToken   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

// DiscordOption configures the DiscordClient.
type DiscordOption func(*DiscordClient)

// WithDiscordBaseURL overrides the API base URL (tests).
func WithDiscordBaseURL(baseURL string) DiscordOption {
	return func(c *DiscordClient) {
		c.baseURL = baseURL
	}
}

// WithDiscordHTTPClient sets a custom HTTP client.
func WithDiscordHTTPClient(client *http.Client) DiscordOption {
	return func(c *DiscordClient) {
		c.httpClient = client
	}
}

// NewDiscordClient creates a Discord REST client authenticated as a bot.
func NewDiscordClient(botToken string, logger arbor.ILogger, opts ...DiscordOption) *DiscordClient {
	c := &DiscordClient{
		baseURL:    defaultDiscordBaseURL,
		botToken:   botToken,
		httpClient: httpclient.NewDefaultHTTPClient(15 * time.Second),
		limiter:    rate.NewLimiter(rate.Limit(discordRateLimit), discordRateLimit),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiError is a non-2xx Discord response.
type apiError struct {
	status int
}

func (e *apiError) Error() string {
	return fmt.Sprintf("discord API status %d", e.status)
}

// isMessageGone reports whether the error means the target message or channel
// no longer exists and the surface must be recreated.
func isMessageGone(err error) bool {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.status == http.StatusNotFound
	}
	return false
}

// CreateDMChannel opens (or reuses) the DM channel with a user and returns
// its id.
func (c *DiscordClient) CreateDMChannel(ctx context.Context, userID string) (string, error) {
	payload := map[string]string{"recipient_id": userID}
	data, err := c.doRequest(ctx, "POST", "/users/@me/channels", payload)
	if err != nil {
		return "", fmt.Errorf("failed to open DM channel: %w", err)
	}

	var channel struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &channel); err != nil {
		return "", fmt.Errorf("failed to parse channel response: %w", err)
	}
	return channel.ID, nil
}

// CreateMessage posts a message to a channel and returns the message id.
func (c *DiscordClient) CreateMessage(ctx context.Context, channelID, content string) (string, error) {
	payload := map[string]string{"content": content}
	data, err := c.doRequest(ctx, "POST", "/channels/"+channelID+"/messages", payload)
	if err != nil {
		return "", fmt.Errorf("failed to create message: %w", err)
	}

	var message struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &message); err != nil {
		return "", fmt.Errorf("failed to parse message response: %w", err)
	}
	return message.ID, nil
}

// EditMessage replaces the content of an existing message.
func (c *DiscordClient) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	payload := map[string]string{"content": content}
	if _, err := c.doRequest(ctx, "PATCH", "/channels/"+channelID+"/messages/"+messageID, payload); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

func (c *DiscordClient) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
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

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.botToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("body", string(data)).
			Msg("Discord API error response")
		return nil, &apiError{status: resp.StatusCode}
	}

	return data, nil
}
