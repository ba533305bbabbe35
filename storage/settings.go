package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/driftwire/driftwire-go/core/catchup"
)

const (
	settingUserName        = "user_name"
	settingWatermarkPrefix = "watermark/"
)

// UserName returns the persisted display name, or "" when unset.
func (s *Store) UserName() (string, error) {
	name, _, err := s.getSetting(settingUserName)
	return name, err
}

// SetUserName persists the display name.
func (s *Store) SetUserName(name string) error {
	return s.setSetting(settingUserName, name)
}

func (s *Store) getSetting(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read setting %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) setSetting(key, value string) error {
	if _, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	); err != nil {
		return fmt.Errorf("write setting %q: %w", key, err)
	}
	return nil
}

// Compile-time assertion that WatermarkTracker implements catchup.Tracker.
var _ catchup.Tracker = (*WatermarkTracker)(nil)

// WatermarkTracker is the durable catchup.Tracker, stored as a
// stringified integer in the settings table, one key per channel.
type WatermarkTracker struct {
	store   *Store
	channel string
	now     func() int64
	log     *slog.Logger
}

// WatermarkTracker returns the tracker scoped to one channel. now feeds
// the default-lookback fallback. Logger falls back to slog.Default().
func (s *Store) WatermarkTracker(channel string, now func() int64, logger *slog.Logger) *WatermarkTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &WatermarkTracker{
		store:   s,
		channel: channel,
		now:     now,
		log:     logger.WithGroup("watermark"),
	}
}

// Get returns the persisted watermark. A missing or unreadable value
// falls back to now - DefaultLookback; storage trouble here is never
// fatal.
func (t *WatermarkTracker) Get() int64 {
	value, ok, err := t.store.getSetting(settingWatermarkPrefix + t.channel)
	if err != nil {
		t.log.Warn("watermark read failed, using default lookback", "error", err)
		return t.now() - catchup.DefaultLookback
	}
	if !ok {
		return t.now() - catchup.DefaultLookback
	}

	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		t.log.Warn("watermark value corrupt, using default lookback", "value", value)
		return t.now() - catchup.DefaultLookback
	}
	return ts
}

// Set persists the watermark unconditionally.
func (t *WatermarkTracker) Set(ts int64) error {
	return t.store.setSetting(settingWatermarkPrefix+t.channel, strconv.FormatInt(ts, 10))
}
