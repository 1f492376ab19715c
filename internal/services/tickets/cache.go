package tickets

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/interfaces"
)

// ProviderCache is the in-memory, TTL-based cache of constructed providers
// per tenant. It is constructor-injected (never a package-level singleton) so
// tests can hold isolated instances, and is safe for concurrent use.
//
// At most one live entry exists per tenant; a concurrent double-resolve ends
// with the last write winning, which is harmless since both providers carry
// valid credentials.
type ProviderCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	logger  arbor.ILogger
	now     func() time.Time
}

type cacheEntry struct {
	provider  interfaces.TicketProvider
	expiresAt time.Time
}

// NewProviderCache creates an empty provider cache.
func NewProviderCache(logger arbor.ILogger) *ProviderCache {
	return &ProviderCache{
		entries: make(map[string]cacheEntry),
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the cached provider for a tenant if present and unexpired.
func (c *ProviderCache) Get(tenantID string) (interfaces.TicketProvider, bool) {
	c.mu.RLock()
	entry, ok := c.entries[tenantID]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		// Expired entries are dropped lazily; the next Put replaces them.
		c.mu.Lock()
		if current, still := c.entries[tenantID]; still && c.now().After(current.expiresAt) {
			delete(c.entries, tenantID)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.provider, true
}

// Put stores a provider for a tenant with the given TTL, replacing any
// existing entry.
func (c *ProviderCache) Put(tenantID string, provider interfaces.TicketProvider, ttl time.Duration) {
	c.mu.Lock()
	c.entries[tenantID] = cacheEntry{
		provider:  provider,
		expiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()

	c.logger.Debug().
		Str("tenant", tenantID).
		Str("ttl", ttl.String()).
		Msg("Cached tenant provider")
}

// Invalidate drops the cached provider for a tenant. Called synchronously on
// every credential write so a stale provider is never served after a
// configuration change.
func (c *ProviderCache) Invalidate(tenantID string) {
	c.mu.Lock()
	_, existed := c.entries[tenantID]
	delete(c.entries, tenantID)
	c.mu.Unlock()

	if existed {
		c.logger.Debug().Str("tenant", tenantID).Msg("Invalidated cached tenant provider")
	}
}

// Len returns the number of live entries (expired entries not yet evicted
// count until touched).
func (c *ProviderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
