package filter

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// EncryptionFilter encrypts tile buffers with AES-GCM. The forward pass
// prepends the nonce to the ciphertext; the reverse pass strips it.
type EncryptionFilter struct {
	aead cipher.AEAD
}

// NewEncryptionFilter creates a filter for a 16-, 24- or 32-byte AES key
func NewEncryptionFilter(key []byte) (*EncryptionFilter, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &EncryptionFilter{aead: aead}, nil
}

// Name returns the filter identifier
func (f *EncryptionFilter) Name() string {
	return "aes-gcm"
}

// RunForward encrypts data
func (f *EncryptionFilter) RunForward(data []byte) ([]byte, error) {
	nonce := make([]byte, f.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return f.aead.Seal(nonce, nonce, data, nil), nil
}

// RunReverse decrypts data
func (f *EncryptionFilter) RunReverse(data []byte) ([]byte, error) {
	ns := f.aead.NonceSize()
	if len(data) < ns {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}
	plain, err := f.aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plain, nil
}
