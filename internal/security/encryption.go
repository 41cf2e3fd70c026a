package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInvalidToken is returned when a patient token cannot be decrypted
var ErrInvalidToken = errors.New("invalid patient token")

// tokenEncoding keeps tokens safe for URL path segments
var tokenEncoding = base64.RawURLEncoding

// Encryptor turns internal patient ids into opaque tokens and back using AES-256-GCM
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor creates a new encryptor with a 32-byte key for AES-256
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes for AES-256, got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{aead: aead}, nil
}

// ParseKey decodes a 32-byte key given as hex or standard/URL base64
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("encryption key is empty")
	}

	if len(s) == 64 {
		if key, err := hex.DecodeString(s); err == nil {
			return key, nil
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if key, err := enc.DecodeString(s); err == nil && len(key) == 32 {
			return key, nil
		}
	}
	return nil, fmt.Errorf("encryption key must be 32 bytes encoded as hex or base64")
}

// EncryptID seals an internal id into a URL-safe token. Tokens are randomized, so the same id
// yields a different token each call.
func (e *Encryptor) EncryptID(id string) (string, error) {
	if id == "" {
		return "", errors.New("id is required")
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(id), nil)
	return tokenEncoding.EncodeToString(sealed), nil
}

// DecryptID opens a token produced by EncryptID
func (e *Encryptor) DecryptID(token string) (string, error) {
	data, err := tokenEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	nonceSize := e.aead.NonceSize()
	if len(data) <= nonceSize {
		return "", fmt.Errorf("%w: token too short", ErrInvalidToken)
	}

	plaintext, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(plaintext) == 0 {
		return "", fmt.Errorf("%w: empty id", ErrInvalidToken)
	}

	return string(plaintext), nil
}
