// Package envelope defines the signed message envelope exchanged between
// peers and the JSON payloads it carries.
//
// A RawMessage is the unit delivered by the transport: an opaque JSON
// payload plus the sender's public key, an epoch-millisecond timestamp,
// and an ed25519 signature over all three. The signature doubles as the
// message's unique identity, which is what the comment store dedups on.
package envelope

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

// RawMessage is the signed transport envelope. Immutable once received.
type RawMessage struct {
	// Signature is the base64 ed25519 signature over sender, timestamp,
	// and payload. It is also the message's unique id.
	Signature string `json:"systemSignature"`
	// SenderPublicKey is the base64 ed25519 public key of the author.
	SenderPublicKey string `json:"senderPublicKey"`
	// Timestamp is the author's clock in epoch milliseconds.
	Timestamp int64 `json:"timestamp"`
	// PayloadJSON is the typed JSON payload (see payload.go).
	PayloadJSON string `json:"messageJson"`
}

var (
	// ErrBadKey is returned when a key is missing or the wrong size.
	ErrBadKey = errors.New("invalid ed25519 key")
	// ErrBadSignature is returned when an envelope fails verification.
	ErrBadSignature = errors.New("invalid envelope signature")
)

// Seal builds a signed envelope around payloadJSON, timestamped at ts.
// The sender public key is derived from the private key.
func Seal(priv ed25519.PrivateKey, ts int64, payloadJSON string) (*RawMessage, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key size %d", ErrBadKey, len(priv))
	}

	pub := priv.Public().(ed25519.PublicKey)
	sender := base64.StdEncoding.EncodeToString(pub)

	sig := ed25519.Sign(priv, signingBytes(sender, ts, payloadJSON))

	return &RawMessage{
		Signature:       base64.StdEncoding.EncodeToString(sig),
		SenderPublicKey: sender,
		Timestamp:       ts,
		PayloadJSON:     payloadJSON,
	}, nil
}

// Verify checks the envelope's signature against its sender key and
// contents. It returns nil for a valid envelope.
func Verify(raw *RawMessage) error {
	pub, err := base64.StdEncoding.DecodeString(raw.SenderPublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: sender public key", ErrBadKey)
	}

	sig, err := base64.StdEncoding.DecodeString(raw.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ErrBadSignature
	}

	if !ed25519.Verify(ed25519.PublicKey(pub), signingBytes(raw.SenderPublicKey, raw.Timestamp, raw.PayloadJSON), sig) {
		return ErrBadSignature
	}
	return nil
}

// signingBytes is the canonical byte string covered by the envelope
// signature: sender key, big-endian timestamp, payload.
func signingBytes(sender string, ts int64, payloadJSON string) []byte {
	buf := make([]byte, 0, len(sender)+8+len(payloadJSON))
	buf = append(buf, sender...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(ts))
	buf = append(buf, payloadJSON...)
	return buf
}
