// Package catchup tracks the per-channel synchronization watermark: the
// timestamp up to which this device considers itself caught up with its
// peers. The watermark drives history requests on startup and filters
// late history replies.
package catchup

import "sync"

// DefaultLookback is how far back a device with no persisted watermark
// asks peers to replay: 24 hours in milliseconds.
const DefaultLookback int64 = 24 * 60 * 60 * 1000

// Tracker is the interface for watermark storage backends. The durable
// implementation lives in the storage package; MemoryTracker serves tests
// and persistence-free sessions.
//
// Callers must keep the watermark monotonic: Set is only ever invoked
// with a value >= the current Get result. Implementations do not enforce
// this.
type Tracker interface {
	// Get returns the persisted watermark, or now - DefaultLookback when
	// absent or unreadable. Read failures are non-fatal by contract.
	Get() int64

	// Set persists the watermark unconditionally.
	Set(ts int64) error
}

// Compile-time assertion that MemoryTracker implements Tracker.
var _ Tracker = (*MemoryTracker)(nil)

// MemoryTracker is an in-memory Tracker.
type MemoryTracker struct {
	mu    sync.Mutex
	set   bool
	value int64
	now   func() int64
}

// NewMemoryTracker creates a MemoryTracker using now as its clock for the
// default-lookback fallback.
func NewMemoryTracker(now func() int64) *MemoryTracker {
	return &MemoryTracker{now: now}
}

// Get returns the stored watermark, or now - DefaultLookback when unset.
func (t *MemoryTracker) Get() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.set {
		return t.now() - DefaultLookback
	}
	return t.value
}

// Set stores the watermark.
func (t *MemoryTracker) Set(ts int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.set = true
	t.value = ts
	return nil
}
