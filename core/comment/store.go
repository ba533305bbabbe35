package comment

import (
	"sort"
	"sync"

	"github.com/driftwire/driftwire-go/core/envelope"
)

// Store is the authoritative in-memory comment set for one channel.
//
// Add is a pure reduction over the sequence: expired envelopes and
// duplicate ids are rejected without error, everything else is inserted
// and the sequence re-sorted ascending by timestamp (stable for ties).
// The store performs no I/O; persistence is the caller's reaction to a
// reported change.
//
// Expiry is checked only at insertion time. An accepted comment that
// later ages past the window stays in the store until Clear.
type Store struct {
	mu       sync.RWMutex
	comments []Comment
	seen     map[string]struct{}
}

// NewStore creates an empty comment store.
func NewStore() *Store {
	return &Store{
		seen: make(map[string]struct{}),
	}
}

// Add applies one received envelope to the store at time now (epoch ms).
// It returns true if the store changed.
//
// Rejected without error: envelopes at or past the expiry boundary
// (timestamp <= now - ExpiryWindow), envelopes whose payload is not a
// well-formed comment, and envelopes whose id is already present.
func (s *Store) Add(raw *envelope.RawMessage, now int64) bool {
	if raw.Timestamp <= now-ExpiryWindow {
		return false
	}

	c, ok := fromRaw(raw)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[c.ID]; dup {
		return false
	}

	s.seen[c.ID] = struct{}{}
	s.comments = append(s.comments, c)
	sort.SliceStable(s.comments, func(i, j int) bool {
		return s.comments[i].Timestamp < s.comments[j].Timestamp
	})
	return true
}

// AddMany folds Add over raws, in order. Returns the number of envelopes
// that changed the store.
func (s *Store) AddMany(raws []envelope.RawMessage, now int64) int {
	added := 0
	for i := range raws {
		if s.Add(&raws[i], now) {
			added++
		}
	}
	return added
}

// Clear resets the store to the empty sequence.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = nil
	s.seen = make(map[string]struct{})
}

// Len returns the number of stored comments.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.comments)
}

// Comments returns a snapshot of the sequence, ascending by timestamp.
func (s *Store) Comments() []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Comment, len(s.comments))
	copy(out, s.comments)
	return out
}

// Since returns a snapshot of comments with Timestamp strictly greater
// than ts, ascending. This is the responder-role scan; snapshotting at
// call time keeps a slow reply from seeing a torn sequence.
func (s *Store) Since(ts int64) []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Comment
	for _, c := range s.comments {
		if c.Timestamp > ts {
			out = append(out, c)
		}
	}
	return out
}

// Raws returns the raw envelopes of the current set, in sequence order.
// This is the input to cache persistence.
func (s *Store) Raws() []envelope.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]envelope.RawMessage, len(s.comments))
	for i, c := range s.comments {
		out[i] = c.Raw
	}
	return out
}

// MaxTimestamp returns the largest comment timestamp in the store, or 0
// when empty.
func (s *Store) MaxTimestamp() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.comments) == 0 {
		return 0
	}
	return s.comments[len(s.comments)-1].Timestamp
}
