package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/tessera/internal/common"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
)

const testOwnerID = "123456789012345678"

// fakeProvider records calls and serves canned responses.
type fakeProvider struct {
	ticket       *models.Ticket
	createResult *models.CreateResult
	commentOK    bool
	supported    bool
	transitionErr error
}

func (p *fakeProvider) Type() models.ProviderType { return models.ProviderTypeJira }

func (p *fakeProvider) CreateTicket(ctx context.Context, input *models.TicketInput) (*models.CreateResult, error) {
	return p.createResult, nil
}

func (p *fakeProvider) ListTickets(ctx context.Context, ownerID string) ([]*models.TicketListItem, error) {
	return []*models.TicketListItem{{ID: "SUP-1", Summary: "Mine"}}, nil
}

func (p *fakeProvider) GetTicket(ctx context.Context, ticketID, ownerID string) (*models.Ticket, error) {
	return p.ticket, nil
}

func (p *fakeProvider) GetTicketUnguarded(ctx context.Context, ticketID string) (*models.Ticket, string, error) {
	return p.ticket, testOwnerID, nil
}

func (p *fakeProvider) AddComment(ctx context.Context, ticketID string, input *models.CommentInput) (bool, error) {
	return p.commentOK, nil
}

func (p *fakeProvider) TransitionTicket(ctx context.Context, ticketID, target string) (bool, error) {
	return p.supported, p.transitionErr
}

type fakeResolver struct {
	provider    interfaces.TicketProvider
	err         error
	invalidated []string
}

func (r *fakeResolver) Resolve(ctx context.Context, tenantID string) (interfaces.TicketProvider, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.provider, nil
}

func (r *fakeResolver) Invalidate(tenantID string) {
	r.invalidated = append(r.invalidated, tenantID)
}

func newTicketHandler(provider interfaces.TicketProvider, resolveErr error) *TicketHandler {
	return NewTicketHandler(&fakeResolver{provider: provider, err: resolveErr}, common.GetLogger())
}

func TestCreateTicketHandler(t *testing.T) {
	handler := newTicketHandler(&fakeProvider{
		createResult: &models.CreateResult{Success: true, TicketID: "SUP-9"},
	}, nil)

	body := `{"owner_id":"` + testOwnerID + `","display_name":"user","summary":"Broken","description":"help"}`
	req := httptest.NewRequest("POST", "/api/tickets", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.CreateTicketHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SUP-9")
}

func TestCreateTicketHandler_RejectsBadOwnerID(t *testing.T) {
	handler := newTicketHandler(&fakeProvider{}, nil)

	// Owner id below the minimum length is rejected before any provider call.
	body := `{"owner_id":"12345","summary":"Broken"}`
	req := httptest.NewRequest("POST", "/api/tickets", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.CreateTicketHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTicketsHandler_RequiresOwner(t *testing.T) {
	handler := newTicketHandler(&fakeProvider{}, nil)

	req := httptest.NewRequest("GET", "/api/tickets", nil)
	rec := httptest.NewRecorder()
	handler.ListTicketsHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest("GET", "/api/tickets?owner="+testOwnerID, nil)
	rec = httptest.NewRecorder()
	handler.ListTicketsHandler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SUP-1")
}

func TestGetTicketHandler_NotFoundOnNilTicket(t *testing.T) {
	handler := newTicketHandler(&fakeProvider{ticket: nil}, nil)

	req := httptest.NewRequest("GET", "/api/tickets/SUP-1?owner="+testOwnerID, nil)
	rec := httptest.NewRecorder()

	handler.GetTicketHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTicketHandler_UnconfiguredTenant(t *testing.T) {
	handler := newTicketHandler(nil, interfaces.ErrNotConfigured)

	req := httptest.NewRequest("GET", "/api/tickets/SUP-1?owner="+testOwnerID, nil)
	rec := httptest.NewRecorder()

	handler.GetTicketHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not configured")
}

func TestAddCommentHandler_GuardedNotFound(t *testing.T) {
	handler := newTicketHandler(&fakeProvider{commentOK: false}, nil)

	body := `{"owner_id":"` + testOwnerID + `","body":"follow-up"}`
	req := httptest.NewRequest("POST", "/api/tickets/SUP-1/comments", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.AddCommentHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransitionTicketHandler_UnsupportedProvider(t *testing.T) {
	handler := newTicketHandler(&fakeProvider{supported: false}, nil)

	req := httptest.NewRequest("POST", "/api/tickets/SUP-1/transition", strings.NewReader(`{"status":"done"}`))
	rec := httptest.NewRecorder()

	handler.TransitionTicketHandler(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestTransitionTicketHandler_Supported(t *testing.T) {
	handler := newTicketHandler(&fakeProvider{supported: true}, nil)

	req := httptest.NewRequest("POST", "/api/tickets/SUP-1/transition", strings.NewReader(`{"status":"done"}`))
	rec := httptest.NewRecorder()

	handler.TransitionTicketHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTenantID(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/tickets", nil)
	assert.Equal(t, DefaultTenantID, TenantID(req))

	req = httptest.NewRequest("GET", "/api/tickets?tenant=acme", nil)
	assert.Equal(t, "acme", TenantID(req))

	// The header wins over the query parameter.
	req.Header.Set("X-Tenant-ID", "globex")
	assert.Equal(t, "globex", TenantID(req))
}

func TestTicketKey(t *testing.T) {
	assert.Equal(t, "SUP-1", ticketKey("/api/tickets/SUP-1"))
	assert.Equal(t, "", ticketKey("/api/tickets/"))
	assert.Equal(t, "", ticketKey("/api/tickets/SUP-1/comments"))
}
