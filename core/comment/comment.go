// Package comment holds the in-memory comment set for a channel: the
// deduplicated, timestamp-ordered, expiry-filtered view that every other
// component reads from.
package comment

import (
	"github.com/driftwire/driftwire-go/core/envelope"
)

// ExpiryWindow is how long a comment stays acceptable after its author's
// timestamp. Older arrivals are treated as irrelevant noise and dropped
// on insert, not as errors.
const ExpiryWindow int64 = 60 * 60 * 1000 // 1 hour in ms

// Comment is a decoded chat comment derived from a received envelope.
// Never mutated after creation.
type Comment struct {
	// ID is the envelope signature, unique per comment.
	ID string

	// SenderPublicKey is the author's base64 public key.
	SenderPublicKey string

	// UserName is the author's display name at posting time.
	UserName string

	// Timestamp is the author's clock in epoch milliseconds.
	Timestamp int64

	// Text is the comment body.
	Text string

	// Raw is the original signed envelope, kept for persistence and
	// history replay.
	Raw envelope.RawMessage
}

// fromRaw decodes an envelope into a Comment. Returns false for payloads
// that aren't well-formed comments.
func fromRaw(raw *envelope.RawMessage) (Comment, bool) {
	p, err := envelope.DecodeComment(raw)
	if err != nil {
		return Comment{}, false
	}
	return Comment{
		ID:              raw.Signature,
		SenderPublicKey: raw.SenderPublicKey,
		UserName:        p.UserName,
		Timestamp:       raw.Timestamp,
		Text:            p.Comment,
		Raw:             *raw,
	}, true
}
