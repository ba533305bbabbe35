package storage

import (
	"context"
	"fmt"

	"github.com/driftwire/driftwire-go/core/envelope"
	"github.com/driftwire/driftwire-go/core/session"
)

// Compile-time assertion that MessageCache implements session.Cache.
var _ session.Cache = (*MessageCache)(nil)

// MessageCache is the durable per-channel mirror of received envelopes,
// keyed by signature. It implements session.Cache on top of the shared
// Store.
type MessageCache struct {
	store   *Store
	channel string
}

// MessageCache returns the cache scoped to one channel.
func (s *Store) MessageCache(channel string) *MessageCache {
	return &MessageCache{store: s, channel: channel}
}

// Persist upserts every envelope in one transaction. On error nothing is
// written; prior durable state is unchanged.
func (c *MessageCache) Persist(ctx context.Context, raws []envelope.RawMessage) error {
	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin persist tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (signature, channel, sender_public_key, timestamp, payload_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(signature) DO UPDATE SET
			channel = excluded.channel,
			sender_public_key = excluded.sender_public_key,
			timestamp = excluded.timestamp,
			payload_json = excluded.payload_json`)
	if err != nil {
		return fmt.Errorf("prepare persist: %w", err)
	}
	defer stmt.Close()

	for i := range raws {
		raw := &raws[i]
		if _, err := stmt.ExecContext(ctx,
			raw.Signature, c.channel, raw.SenderPublicKey, raw.Timestamp, raw.PayloadJSON,
		); err != nil {
			return fmt.Errorf("persist envelope %q: %w", raw.Signature, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit persist tx: %w", err)
	}
	return nil
}

// LoadAll returns every stored envelope for the channel. Order is
// unspecified.
func (c *MessageCache) LoadAll(ctx context.Context) ([]envelope.RawMessage, error) {
	rows, err := c.store.db.QueryContext(ctx,
		`SELECT signature, sender_public_key, timestamp, payload_json
		FROM messages
		WHERE channel = ?`,
		c.channel,
	)
	if err != nil {
		return nil, fmt.Errorf("load cached envelopes: %w", err)
	}
	defer rows.Close()

	var out []envelope.RawMessage
	for rows.Next() {
		var raw envelope.RawMessage
		if err := rows.Scan(&raw.Signature, &raw.SenderPublicKey, &raw.Timestamp, &raw.PayloadJSON); err != nil {
			return nil, fmt.Errorf("scan cached envelope: %w", err)
		}
		out = append(out, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cached envelopes: %w", err)
	}
	return out, nil
}

// ClearAll deletes every stored envelope for the channel.
func (c *MessageCache) ClearAll(ctx context.Context) error {
	if _, err := c.store.db.ExecContext(ctx,
		`DELETE FROM messages WHERE channel = ?`, c.channel,
	); err != nil {
		return fmt.Errorf("clear cached envelopes: %w", err)
	}
	return nil
}

// Count returns the number of stored envelopes for the channel.
func (c *MessageCache) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE channel = ?`, c.channel,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cached envelopes: %w", err)
	}
	return n, nil
}
