package users

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const cipherPrefix = "enc.v1."

// Cipher encrypts PII columns at rest. It is tolerant on read: values that are
// not recognizable ciphertexts (legacy plaintext rows, or rows written before a
// key was configured) pass through unchanged. A nil *Cipher is a valid no-op.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives a ChaCha20-Poly1305 key from the configured secret.
// An empty secret disables encryption entirely.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, nil
	}
	key := sha256.Sum256([]byte(secret))
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals the value with a random nonce. Empty values stay empty.
func (c *Cipher) Encrypt(value string) string {
	if c == nil || value == "" {
		return value
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return value
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(value), nil)
	return cipherPrefix + base64.RawURLEncoding.EncodeToString(sealed)
}

// Decrypt opens a sealed value. Anything that does not look like our
// ciphertext is returned as-is.
func (c *Cipher) Decrypt(value string) string {
	if c == nil || !strings.HasPrefix(value, cipherPrefix) {
		return value
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, cipherPrefix))
	if err != nil || len(raw) < chacha20poly1305.NonceSize {
		return value
	}
	nonce, sealed := raw[:chacha20poly1305.NonceSize], raw[chacha20poly1305.NonceSize:]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return value
	}
	return string(plain)
}

// EmailIndex produces the deterministic lookup digest for an email address.
// Encryption randomizes ciphertexts, so uniqueness and lookups run against
// this column instead of the email column itself.
func EmailIndex(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}
