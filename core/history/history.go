// Package history implements the reconciliation exchange that backfills
// comments a device missed while offline.
//
// The protocol is symmetric: every peer both requests history once per
// session (driven by the session state machine) and answers any peer's
// request from its own comment store. Because several peers may answer
// the same request concurrently, replies can overlap or duplicate;
// correctness relies entirely on the comment store's idempotent Add, not
// on any protocol-level coordination.
package history

import (
	"github.com/driftwire/driftwire-go/core/catchup"
	"github.com/driftwire/driftwire-go/core/comment"
	"github.com/driftwire/driftwire-go/core/envelope"
)

// BatchSizeLimit bounds the cumulative serialized size of one outgoing
// history batch, in bytes. The check runs after each envelope is added,
// so a batch may overshoot by at most one envelope.
const BatchSizeLimit = 10000

// Respond builds the history batches answering a request-history with the
// given start timestamp. The comment store is snapshotted at call time;
// comments arriving while the reply is being published are not included
// (they reach the requester as live traffic instead).
//
// A request matching nothing returns no batches.
func Respond(store *comment.Store, startTimestamp int64) [][]envelope.RawMessage {
	matched := store.Since(startTimestamp)
	if len(matched) == 0 {
		return nil
	}

	raws := make([]envelope.RawMessage, len(matched))
	for i, c := range matched {
		raws[i] = c.Raw
	}
	return SplitBatches(raws)
}

// SplitBatches splits envelopes into batches whose cumulative serialized
// size stays under BatchSizeLimit plus one envelope's overshoot.
func SplitBatches(raws []envelope.RawMessage) [][]envelope.RawMessage {
	var batches [][]envelope.RawMessage
	var batch []envelope.RawMessage
	size := 0

	for i := range raws {
		batch = append(batch, raws[i])
		size += envelope.EncodedSize(&raws[i])
		if size >= BatchSizeLimit {
			batches = append(batches, batch)
			batch = nil
			size = 0
		}
	}
	if len(batch) > 0 {
		batches = append(batches, batch)
	}
	return batches
}

// Ingest feeds a received history batch into the comment store.
//
// Each envelope is compared against a fresh read of the watermark:
// anything older than what this device has already synchronized is
// discarded even if it would pass the plain expiry check, so a slow or
// late reply can't regress the store. Survivors go through the store's
// ordinary Add, which still applies expiry and dedup.
//
// Returns the number of envelopes that changed the store.
func Ingest(store *comment.Store, tracker catchup.Tracker, raws []envelope.RawMessage, now int64) int {
	added := 0
	for i := range raws {
		if raws[i].Timestamp < tracker.Get() {
			continue
		}
		if store.Add(&raws[i], now) {
			added++
		}
	}
	return added
}
