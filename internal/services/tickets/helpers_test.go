package tickets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
)

// stubProvider is a minimal TicketProvider for cache and factory tests.
type stubProvider struct {
	name string
}

func (p *stubProvider) Type() models.ProviderType { return models.ProviderTypeJira }

func (p *stubProvider) CreateTicket(ctx context.Context, input *models.TicketInput) (*models.CreateResult, error) {
	return &models.CreateResult{Success: true, TicketID: "STUB-1"}, nil
}

func (p *stubProvider) ListTickets(ctx context.Context, ownerID string) ([]*models.TicketListItem, error) {
	return nil, nil
}

func (p *stubProvider) GetTicket(ctx context.Context, ticketID, ownerID string) (*models.Ticket, error) {
	return nil, nil
}

func (p *stubProvider) GetTicketUnguarded(ctx context.Context, ticketID string) (*models.Ticket, string, error) {
	return nil, "", nil
}

func (p *stubProvider) AddComment(ctx context.Context, ticketID string, input *models.CommentInput) (bool, error) {
	return false, nil
}

func (p *stubProvider) TransitionTicket(ctx context.Context, ticketID, target string) (bool, error) {
	return false, nil
}

// memCredStore is an in-memory CredentialStorage.
type memCredStore struct {
	mu    sync.Mutex
	creds map[string]models.TenantCredential
}

func newMemCredStore() *memCredStore {
	return &memCredStore{creds: make(map[string]models.TenantCredential)}
}

func (s *memCredStore) Store(ctx context.Context, cred *models.TenantCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.TenantID] = *cred
	return nil
}

func (s *memCredStore) Get(ctx context.Context, tenantID string) (*models.TenantCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[tenantID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copied := cred
	return &copied, nil
}

func (s *memCredStore) Delete(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, tenantID)
	return nil
}

func (s *memCredStore) List(ctx context.Context) ([]*models.TenantCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.TenantCredential, 0, len(s.creds))
	for _, cred := range s.creds {
		copied := cred
		out = append(out, &copied)
	}
	return out, nil
}

// prefixEncryptor is a reversible stand-in for the AES-GCM encryptor so
// factory tests can assert on stored token values.
type prefixEncryptor struct{}

func (prefixEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	return []byte("enc:" + string(plaintext)), nil
}

func (prefixEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	text := string(ciphertext)
	if !strings.HasPrefix(text, "enc:") {
		return nil, fmt.Errorf("not an encrypted value: %q", text)
	}
	return []byte(strings.TrimPrefix(text, "enc:")), nil
}
