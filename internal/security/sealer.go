package security

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrSealerKeyMissing indicates no credential key is configured.
var ErrSealerKeyMissing = errors.New("security: credential key missing")

// Sealer encrypts and decrypts stored SMTP credentials.
type Sealer struct {
	key []byte
}

// NewSealer derives a sealing key from the configured secret.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, ErrSealerKeyMissing
	}
	sum := sha256.Sum256([]byte(secret))
	return &Sealer{key: sum[:]}, nil
}

// Seal encrypts plaintext and prepends the nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	if s == nil || len(s.key) == 0 {
		return nil, ErrSealerKeyMissing
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("security: init aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, errRead := rand.Read(nonce); errRead != nil {
		return nil, fmt.Errorf("security: read nonce: %w", errRead)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Unseal decrypts a sealed credential produced by Seal.
func (s *Sealer) Unseal(sealed []byte) ([]byte, error) {
	if s == nil || len(s.key) == 0 {
		return nil, ErrSealerKeyMissing
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("security: init aead: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("security: sealed credential too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, errOpen := aead.Open(nil, nonce, ciphertext, nil)
	if errOpen != nil {
		return nil, fmt.Errorf("security: unseal credential: %w", errOpen)
	}
	return plaintext, nil
}
