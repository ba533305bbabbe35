package storage

import (
	"crypto/ed25519"
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/driftwire/driftwire-go/core/envelope"
)

// openTestStore opens a store in a per-test temp dir and closes it on
// cleanup.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), DefaultDBFileName))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testKey = func() ed25519.PrivateKey {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	return priv
}()

func makeEnvelope(t *testing.T, ts int64, text string) envelope.RawMessage {
	t.Helper()
	payload, err := envelope.EncodeCommentPayload("tester", text)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	raw, err := envelope.Seal(testKey, ts, payload)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	return *raw
}
