package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/tessera/internal/common"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
	"github.com/ternarybob/tessera/internal/services/webhooks"
)

type memCredStore struct {
	creds map[string]*models.TenantCredential
}

func (s *memCredStore) Store(ctx context.Context, cred *models.TenantCredential) error {
	s.creds[cred.TenantID] = cred
	return nil
}

func (s *memCredStore) Get(ctx context.Context, tenantID string) (*models.TenantCredential, error) {
	cred, ok := s.creds[tenantID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return cred, nil
}

func (s *memCredStore) Delete(ctx context.Context, tenantID string) error {
	delete(s.creds, tenantID)
	return nil
}

func (s *memCredStore) List(ctx context.Context) ([]*models.TenantCredential, error) {
	return nil, nil
}

type memStats struct {
	stat     *models.WebhookStat
	failures int
}

func (s *memStats) Get(ctx context.Context, tenantID string) (*models.WebhookStat, error) {
	if s.stat == nil {
		return nil, interfaces.ErrNotFound
	}
	return s.stat, nil
}

func (s *memStats) RecordSuccess(ctx context.Context, tenantID string, at time.Time) error {
	return nil
}

func (s *memStats) RecordFailure(ctx context.Context, tenantID string) error {
	s.failures++
	return nil
}

type dropNotifier struct{}

func (dropNotifier) SendOrUpdate(ctx context.Context, ownerID, ticketID, content string) error {
	return nil
}

func newWebhookHandler(defaultSecret string, stats *memStats) *WebhookHandler {
	return newWebhookHandlerWithResolver(defaultSecret, stats, &fakeResolver{provider: &fakeProvider{}})
}

func newWebhookHandlerWithResolver(defaultSecret string, stats *memStats, resolver interfaces.ProviderResolver) *WebhookHandler {
	service := webhooks.NewService(
		resolver,
		&memCredStore{creds: make(map[string]*models.TenantCredential)},
		stats,
		dropNotifier{},
		&common.WebhookConfig{DefaultSecret: defaultSecret, FreshnessWindow: "2m"},
		common.GetLogger(),
	)
	return NewWebhookHandler(service, stats, common.GetLogger())
}

func TestIngestHandler_InvalidSecretRejected(t *testing.T) {
	handler := newWebhookHandler("env-secret", &memStats{})

	req := httptest.NewRequest("POST", "/webhooks/ticketing?secret=guess",
		strings.NewReader(`{"event":"comment_created","issueKey":"SUP-1"}`))
	rec := httptest.NewRecorder()

	handler.IngestHandler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIngestHandler_NoSecretConfigured(t *testing.T) {
	handler := newWebhookHandler("", &memStats{})

	req := httptest.NewRequest("POST", "/webhooks/ticketing?secret=anything", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	handler.IngestHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngestHandler_AcknowledgedSkip(t *testing.T) {
	handler := newWebhookHandler("env-secret", &memStats{})

	// Valid secret, but the payload carries no issue key.
	req := httptest.NewRequest("POST", "/webhooks/ticketing?secret=env-secret",
		strings.NewReader(`{"event":"comment_created"}`))
	rec := httptest.NewRecorder()

	handler.IngestHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":true`)
	assert.Contains(t, rec.Body.String(), `"skipped":true`)
}

func TestIngestHandler_AcknowledgesProcessingFailure(t *testing.T) {
	stats := &memStats{}
	handler := newWebhookHandlerWithResolver("env-secret", stats,
		&fakeResolver{err: errors.New("badger: connection closed")})

	req := httptest.NewRequest("POST", "/webhooks/ticketing?secret=env-secret",
		strings.NewReader(`{"event":"comment_created","issueKey":"SUP-1"}`))
	rec := httptest.NewRecorder()

	handler.IngestHandler(rec, req)

	// The failure is counted but the delivery is acknowledged, so the
	// tracker does not retry.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":true`)
	assert.Equal(t, 1, stats.failures)
}

func TestStatsHandler_ZeroesForUnknownTenant(t *testing.T) {
	handler := newWebhookHandler("env-secret", &memStats{})

	req := httptest.NewRequest("GET", "/api/webhooks/stats?tenant=ghost", nil)
	rec := httptest.NewRecorder()

	handler.StatsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received_count":0`)
}

func TestStatsHandler_ReturnsStoredCounters(t *testing.T) {
	handler := newWebhookHandler("env-secret", &memStats{stat: &models.WebhookStat{
		TenantID:      "main",
		ReceivedCount: 7,
		FailureCount:  1,
	}})

	req := httptest.NewRequest("GET", "/api/webhooks/stats", nil)
	rec := httptest.NewRecorder()

	handler.StatsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received_count":7`)
}
