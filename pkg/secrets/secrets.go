// Package secrets encrypts destination secret tokens at rest.
//
// The streaming engine must recover plaintext secrets to sign and
// authenticate deliveries, so unlike password storage this is two-way:
// AES-256-GCM with a key derived from the installation master key via
// HKDF-SHA256. Decrypted values are handed explicitly to transports and must
// never be logged.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// derivation context separates this key from any other use of the master key.
const keyInfo = "auditstream/destination-secrets/v1"

// Box seals and opens destination secrets with a derived symmetric key.
type Box struct {
	aead cipher.AEAD
}

// NewBox derives the encryption key from the master key and prepares the
// cipher. The master key is an opaque high-entropy string from configuration.
func NewBox(masterKey string) (*Box, error) {
	if masterKey == "" {
		return nil, errors.New("secrets: master key must not be empty")
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(masterKey), nil, []byte(keyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("secrets: derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: init gcm: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Encrypt seals a plaintext secret. The result is base64(nonce || ciphertext)
// and safe to store in a text column.
func (b *Box) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Tampered or truncated values
// fail authentication and return an error.
func (b *Box) Decrypt(encoded string) (string, error) {
	raw, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("secrets: decode: %w", err)
	}
	if len(raw) < b.aead.NonceSize() {
		return "", errors.New("secrets: ciphertext too short")
	}
	nonce, ciphertext := raw[:b.aead.NonceSize()], raw[b.aead.NonceSize():]
	plaintext, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("secrets: open: %w", err)
	}
	return string(plaintext), nil
}
