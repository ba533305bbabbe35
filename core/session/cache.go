package session

import (
	"context"
	"sync"

	"github.com/driftwire/driftwire-go/core/envelope"
)

// Cache is the interface for the durable per-device mirror of received
// envelopes. The SQLite implementation lives in the storage package;
// MemoryCache serves tests and sessions degraded to no persistence.
//
// Persist is whole-collection oriented: callers hand over the full
// current envelope set and implementations upsert every record keyed by
// signature in one atomic transaction. Re-persisting already-stored
// envelopes is expected and must be idempotent.
type Cache interface {
	// Persist durably stores every given envelope, all-or-nothing.
	Persist(ctx context.Context, raws []envelope.RawMessage) error

	// LoadAll returns every stored envelope. Order is unspecified;
	// sorting is the comment store's job.
	LoadAll(ctx context.Context) ([]envelope.RawMessage, error)

	// ClearAll destroys the entire durable set. Maintenance operation,
	// not part of normal reconciliation.
	ClearAll(ctx context.Context) error
}

// Compile-time assertion that MemoryCache implements Cache.
var _ Cache = (*MemoryCache)(nil)

// MemoryCache is an in-memory Cache keyed by envelope signature.
type MemoryCache struct {
	mu   sync.Mutex
	byID map[string]envelope.RawMessage
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{byID: make(map[string]envelope.RawMessage)}
}

// Persist upserts every envelope by signature.
func (c *MemoryCache) Persist(_ context.Context, raws []envelope.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, raw := range raws {
		c.byID[raw.Signature] = raw
	}
	return nil
}

// LoadAll returns every stored envelope in map order.
func (c *MemoryCache) LoadAll(_ context.Context) ([]envelope.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]envelope.RawMessage, 0, len(c.byID))
	for _, raw := range c.byID {
		out = append(out, raw)
	}
	return out, nil
}

// ClearAll drops every stored envelope.
func (c *MemoryCache) ClearAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID = make(map[string]envelope.RawMessage)
	return nil
}

// Len returns the number of stored envelopes.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}
