// Package identity manages the device's ed25519 keypair and validates
// peer public keys. Each device generates its keypair on first run and
// persists it as PEM files; the public key is the device's identity on
// the channel.
package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"filippo.io/edwards25519"
)

const (
	privatePEMType = "ED25519 PRIVATE KEY"
	publicPEMType  = "ED25519 PUBLIC KEY"

	// fingerprintLen is the number of hex characters in a key fingerprint.
	fingerprintLen = 16
)

// ErrInvalidPublicKey is returned for keys that are the wrong size or are
// not canonical edwards25519 points.
var ErrInvalidPublicKey = errors.New("invalid public key")

// EnsureKeyPair loads the device keypair from disk, generating and
// persisting a fresh one on first run.
func EnsureKeyPair(privatePath, publicPath string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	priv, err := LoadPrivateKey(privatePath)
	if err == nil {
		pub := priv.Public().(ed25519.PublicKey)

		stored, pubErr := LoadPublicKey(publicPath)
		if pubErr != nil || !bytes.Equal(stored, pub) {
			if err := savePEM(publicPath, publicPEMType, pub, 0o644); err != nil {
				return nil, nil, err
			}
		}
		return priv, pub, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, err
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate keypair: %w", err)
	}
	if err := savePEM(privatePath, privatePEMType, priv, 0o600); err != nil {
		return nil, nil, err
	}
	if err := savePEM(publicPath, publicPEMType, pub, 0o644); err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

// LoadPrivateKey loads an ed25519 private key from a PEM file.
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	block, err := loadPEM(path, privatePEMType)
	if err != nil {
		return nil, err
	}
	if len(block) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key %s: invalid size %d", path, len(block))
	}
	return ed25519.PrivateKey(block), nil
}

// LoadPublicKey loads an ed25519 public key from a PEM file.
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	block, err := loadPEM(path, publicPEMType)
	if err != nil {
		return nil, err
	}
	if len(block) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key %s: invalid size %d", path, len(block))
	}
	return ed25519.PublicKey(block), nil
}

// ValidatePublicKey checks that a base64 sender key decodes to a canonical
// edwards25519 point. Non-canonical encodings are rejected so the same
// identity can't appear under two different key strings.
func ValidatePublicKey(encoded string) error {
	pub, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return ErrInvalidPublicKey
	}

	point, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return fmt.Errorf("%w: not a curve point", ErrInvalidPublicKey)
	}
	if !bytes.Equal(point.Bytes(), pub) {
		return fmt.Errorf("%w: non-canonical encoding", ErrInvalidPublicKey)
	}
	return nil
}

// Fingerprint returns a short hex digest of a public key for logs and
// display.
func Fingerprint(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

func loadPEM(path, wantType string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("decode key %s: no PEM block", path)
	}
	if block.Type != wantType {
		return nil, fmt.Errorf("decode key %s: unexpected type %q", path, block.Type)
	}
	return block.Bytes, nil
}

func savePEM(path, pemType string, key []byte, mode os.FileMode) error {
	data := pem.EncodeToMemory(&pem.Block{Type: pemType, Bytes: key})
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("write key %s: %w", path, err)
	}
	return nil
}
