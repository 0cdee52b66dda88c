// Package fieldcrypt encrypts individual text columns (contact details on
// complaints) with XChaCha20-Poly1305. Ciphertext is stored as base64 of
// nonce||sealed.
package fieldcrypt

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrMalformed = errors.New("malformed ciphertext")

// Cipher seals and opens column values.
type Cipher struct {
	key []byte
}

// New builds a Cipher from a hex-encoded 32-byte key.
func New(hexKey string) (*Cipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode field key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("field key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Cipher{key: key}, nil
}

// Encrypt returns the sealed form of plaintext. Empty input stays empty so
// optional columns remain NULL-able.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrMalformed
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrMalformed
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open field: %w", err)
	}
	return string(plain), nil
}
