package session

import (
	"github.com/driftwire/driftwire-go/core/envelope"
	"github.com/driftwire/driftwire-go/core/history"
)

// HandleMessage is the inbound dispatch entry point. It should be
// registered as the transport's message handler.
//
// No condition arising from peer traffic escapes this path: malformed
// payloads, expired or duplicate comments, pre-watermark history items,
// and unknown types are all absorbed here.
func (s *Session) HandleMessage(raw *envelope.RawMessage) {
	typ, err := envelope.PayloadType(raw)
	if err != nil {
		s.log.Debug("dropping malformed payload", "error", err)
		return
	}

	switch typ {
	case envelope.TypeComment:
		s.handleComment(raw)
	case envelope.TypeRequestHistory:
		s.handleRequestHistory(raw)
	case envelope.TypeHistory:
		s.handleHistory(raw)
	default:
		// Forward compatibility: unrecognized types must never crash
		// or corrupt state.
		s.log.Debug("ignoring unknown message type", "type", typ)
	}
}

// handleComment feeds a live comment into the store and reacts to an
// accepted insert by advancing the watermark and re-persisting.
func (s *Session) handleComment(raw *envelope.RawMessage) {
	if !s.cfg.Store.Add(raw, s.cfg.Clock.Now()) {
		// Expired, duplicate, or malformed: expected steady state.
		return
	}
	s.advanceWatermark(raw.Timestamp)
	s.persistAsync()
}

// handleRequestHistory plays the responder role: snapshot everything
// newer than the requested start and re-publish it in size-bounded
// history batches. A request matching nothing publishes nothing.
func (s *Session) handleRequestHistory(raw *envelope.RawMessage) {
	req, err := envelope.DecodeRequestHistory(raw)
	if err != nil {
		s.log.Debug("dropping malformed request-history", "error", err)
		return
	}

	batches := history.Respond(s.cfg.Store, req.StartTimestamp)
	for _, batch := range batches {
		payload, err := envelope.EncodeHistoryPayload(batch)
		if err != nil {
			s.log.Warn("history batch encode failed", "error", err)
			return
		}
		reply, err := envelope.Seal(s.cfg.PrivateKey, s.cfg.Clock.NowUnique(), payload)
		if err != nil {
			s.log.Warn("history batch seal failed", "error", err)
			return
		}
		if err := s.cfg.Publisher.Publish(reply); err != nil {
			s.log.Warn("history batch publish failed", "error", err)
			return
		}
	}

	if len(batches) > 0 {
		s.log.Debug("answered history request",
			"start_timestamp", req.StartTimestamp,
			"batches", len(batches))
	}
}

// handleHistory ingests a history reply, filtering each envelope against
// a fresh watermark read before the store's ordinary Add.
func (s *Session) handleHistory(raw *envelope.RawMessage) {
	h, err := envelope.DecodeHistory(raw)
	if err != nil {
		s.log.Debug("dropping malformed history", "error", err)
		return
	}

	added := history.Ingest(s.cfg.Store, s.cfg.Tracker, h.Comments, s.cfg.Clock.Now())
	if added == 0 {
		return
	}
	s.advanceWatermark(s.cfg.Store.MaxTimestamp())
	s.persistAsync()

	s.log.Debug("ingested history batch", "received", len(h.Comments), "added", added)
}
