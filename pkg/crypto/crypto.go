// Package crypto protects persisted credentials at rest.
//
// The session store keeps the auth and refresh tokens on disk between runs.
// They are sealed with ChaCha20-Poly1305 under a per-machine key so that a
// copied database file is useless without the key file next to it.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrInvalidKey        = errors.New("crypto: key must be 32 bytes")
	ErrInvalidCiphertext = errors.New("crypto: invalid ciphertext")
	ErrDecryptionFailed  = errors.New("crypto: decryption failed")
)

// KeySize is the required key length in bytes.
const KeySize = chacha20poly1305.KeySize

// GenerateKey generates a random 32-byte key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	return key, nil
}

// LoadOrCreateKey reads the key file at path, generating and persisting a
// fresh key (mode 0600) if none exists yet.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from client config
	if err == nil {
		if len(data) != KeySize {
			return nil, ErrInvalidKey
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("crypto: read key file: %w", err)
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, fmt.Errorf("crypto: write key file: %w", err)
	}
	return key, nil
}

// Sealer encrypts and decrypts short strings with ChaCha20-Poly1305.
type Sealer struct {
	key []byte
}

// NewSealer creates a Sealer from a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return &Sealer{key: append([]byte(nil), key...)}, nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext).
// Each call uses a fresh random nonce.
func (s *Sealer) Seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return "", fmt.Errorf("crypto: new cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return "", fmt.Errorf("crypto: new cipher: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
