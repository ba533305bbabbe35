// Package session ties the chat engine together for one device on one
// channel: it loads the local cache into the comment store, runs the
// one-shot history request, routes inbound envelopes, and reacts to
// every store mutation by advancing the watermark and re-persisting the
// full envelope set.
//
// A session is the exclusive owner of its comment store. The durable
// cache and watermark are device-scoped and shared only across
// sequential sessions of the same device/channel pair.
package session

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/driftwire/driftwire-go/core/catchup"
	"github.com/driftwire/driftwire-go/core/clock"
	"github.com/driftwire/driftwire-go/core/comment"
	"github.com/driftwire/driftwire-go/core/envelope"
)

// MaxCommentLength is the maximum comment length in characters. Longer
// submissions are rejected before anything is published.
const MaxCommentLength = 1000

// State is the session's startup state. The one-shot history request is
// enforced by these transitions, not by an incidental flag.
type State int

const (
	// StateNotStarted means Start has not been called.
	StateNotStarted State = iota
	// StateLoading means the local cache load is in flight.
	StateLoading
	// StateHistoryRequested means startup finished and the history
	// request has been published.
	StateHistoryRequested
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateLoading:
		return "loading"
	case StateHistoryRequested:
		return "history-requested"
	default:
		return "unknown"
	}
}

// ErrCommentTooLong is returned by PostComment for submissions over
// MaxCommentLength characters.
var ErrCommentTooLong = errors.New("comment exceeds maximum length")

// Publisher is what the session needs from the transport: publish one
// signed envelope on the session's channel.
type Publisher interface {
	Publish(raw *envelope.RawMessage) error
}

// Config configures a Session.
type Config struct {
	// UserName is the display name attached to authored comments.
	UserName string

	// PrivateKey signs every envelope this session publishes.
	PrivateKey ed25519.PrivateKey

	// Clock for timestamps. If nil, a system clock is used.
	Clock *clock.Clock

	// Store is the in-memory comment set. If nil, an empty store is
	// created.
	Store *comment.Store

	// Cache mirrors received envelopes durably. If nil, the session
	// operates without persistence via a MemoryCache.
	Cache Cache

	// Tracker holds the catch-up watermark. If nil, an in-memory
	// tracker is used.
	Tracker catchup.Tracker

	// Publisher sends envelopes to peers.
	Publisher Publisher

	// Logger for session events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Session is the per-device reconciliation engine for one channel.
type Session struct {
	cfg Config
	log *slog.Logger

	mu    sync.Mutex
	state State

	// persists tracks in-flight async persistence so Close can drain it.
	persists sync.WaitGroup
}

// New creates a session. Publisher and PrivateKey are required.
func New(cfg Config) (*Session, error) {
	if cfg.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if len(cfg.PrivateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size %d", len(cfg.PrivateKey))
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Store == nil {
		cfg.Store = comment.NewStore()
	}
	if cfg.Cache == nil {
		cfg.Cache = NewMemoryCache()
	}
	if cfg.Tracker == nil {
		cfg.Tracker = catchup.NewMemoryTracker(cfg.Clock.Now)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg: cfg,
		log: logger.WithGroup("session"),
	}, nil
}

// Start runs the startup sequence: load the local cache into the comment
// store, then publish the one request-history of this session's lifetime.
//
// Start is safe to re-trigger; only the first call performs the sequence
// and at most one request-history is ever published. If ctx is cancelled
// while the cache load is in flight, the load result is discarded and
// the store is left untouched.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateNotStarted {
		s.mu.Unlock()
		return nil
	}
	s.state = StateLoading
	s.mu.Unlock()

	raws, err := s.cfg.Cache.LoadAll(ctx)
	if err != nil {
		// Non-fatal: start with an empty local set and rely on peers.
		s.log.Warn("local cache load failed, starting empty", "error", err)
		raws = nil
	}

	if ctx.Err() != nil {
		s.log.Debug("session ended during cache load, discarding result")
		return ctx.Err()
	}

	now := s.cfg.Clock.Now()
	loaded := s.cfg.Store.AddMany(raws, now)
	s.advanceWatermark(s.cfg.Store.MaxTimestamp())

	start := s.cfg.Tracker.Get()

	s.mu.Lock()
	if s.state != StateLoading {
		s.mu.Unlock()
		return nil
	}
	s.state = StateHistoryRequested
	s.mu.Unlock()

	if err := s.publishRequestHistory(start); err != nil {
		s.log.Warn("history request publish failed", "error", err)
	}

	s.log.Info("session started",
		"loaded", loaded,
		"start_timestamp", start)
	return nil
}

// State returns the current startup state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PostComment validates, signs, stores, persists, and publishes a comment
// authored on this device. The publish error, if any, is surfaced to the
// submitter; peer-traffic handling never reaches this path.
func (s *Session) PostComment(text string) (*envelope.RawMessage, error) {
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return nil, fmt.Errorf("%w: %d characters, maximum %d",
			ErrCommentTooLong, utf8.RuneCountInString(text), MaxCommentLength)
	}

	payload, err := envelope.EncodeCommentPayload(s.cfg.UserName, text)
	if err != nil {
		return nil, err
	}
	raw, err := envelope.Seal(s.cfg.PrivateKey, s.cfg.Clock.NowUnique(), payload)
	if err != nil {
		return nil, err
	}

	// Insert locally first; the transport echo of our own publish is
	// absorbed by dedup.
	if s.cfg.Store.Add(raw, s.cfg.Clock.Now()) {
		s.advanceWatermark(raw.Timestamp)
		s.persistAsync()
	}

	if err := s.cfg.Publisher.Publish(raw); err != nil {
		return nil, fmt.Errorf("publish comment: %w", err)
	}
	return raw, nil
}

// ClearAll wipes the session: empty comment store, destroyed durable
// cache, watermark reset to now.
func (s *Session) ClearAll(ctx context.Context) error {
	s.cfg.Store.Clear()
	if err := s.cfg.Tracker.Set(s.cfg.Clock.Now()); err != nil {
		s.log.Warn("watermark reset failed", "error", err)
	}
	if err := s.cfg.Cache.ClearAll(ctx); err != nil {
		return fmt.Errorf("clear local cache: %w", err)
	}
	s.log.Info("cleared comment store and local cache")
	return nil
}

// Close blocks until all in-flight cache persistence has completed.
// Call before tearing down the cache underneath the session.
func (s *Session) Close() {
	s.persists.Wait()
}

// Comments returns the current timestamp-ordered comment sequence.
func (s *Session) Comments() []comment.Comment {
	return s.cfg.Store.Comments()
}

// advanceWatermark moves the watermark up to ts if ts is ahead of it.
// Never moves it backward; that monotonicity is this caller's contract
// with the tracker.
func (s *Session) advanceWatermark(ts int64) {
	if ts <= s.cfg.Tracker.Get() {
		return
	}
	if err := s.cfg.Tracker.Set(ts); err != nil {
		s.log.Warn("watermark update failed", "error", err, "timestamp", ts)
	}
}

// persistAsync snapshots the current raw envelope set and writes it to
// the cache in the background. A mutation racing the write simply means
// a slightly earlier full snapshot lands; the following mutation's own
// persist catches the store up. Failures are logged and the in-memory
// state stays authoritative.
func (s *Session) persistAsync() {
	raws := s.cfg.Store.Raws()
	s.persists.Add(1)
	go func() {
		defer s.persists.Done()
		if err := s.cfg.Cache.Persist(context.Background(), raws); err != nil {
			s.log.Error("local cache persist failed", "error", err, "count", len(raws))
		}
	}()
}

func (s *Session) publishRequestHistory(start int64) error {
	payload, err := envelope.EncodeRequestHistoryPayload(start)
	if err != nil {
		return err
	}
	raw, err := envelope.Seal(s.cfg.PrivateKey, s.cfg.Clock.NowUnique(), payload)
	if err != nil {
		return err
	}
	return s.cfg.Publisher.Publish(raw)
}
