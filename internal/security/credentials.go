// Package security seals provider credential material at rest.
package security

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

// KeySize is the secretbox key length in bytes.
const KeySize = 32

const nonceSize = 24

// Box seals and opens credential strings with a symmetric key.
type Box struct {
	key [KeySize]byte
}

// NewBox builds a Box from a hex-encoded 32-byte key.
func NewBox(hexKey string) (*Box, error) {
	raw, errDecode := hex.DecodeString(hexKey)
	if errDecode != nil {
		return nil, fmt.Errorf("security: decode key: %w", errDecode)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("security: key must be %d bytes, got %d", KeySize, len(raw))
	}
	box := &Box{}
	copy(box.key[:], raw)
	return box, nil
}

// NewRandomBox builds a Box with a random key. Material sealed with it is
// unreadable after the process exits.
func NewRandomBox() (*Box, error) {
	key, errKey := GenerateKey()
	if errKey != nil {
		return nil, errKey
	}
	return NewBox(key)
}

// GenerateKey returns a new random hex-encoded secretbox key.
func GenerateKey() (string, error) {
	raw := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("security: generate key: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// Seal encrypts plaintext and returns a base64 token with the nonce
// prepended. Empty plaintext seals to an empty token.
func (b *Box) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("security: nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a token produced by Seal.
func (b *Box) Open(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	raw, errDecode := base64.StdEncoding.DecodeString(token)
	if errDecode != nil {
		return "", fmt.Errorf("security: decode token: %w", errDecode)
	}
	if len(raw) < nonceSize {
		return "", fmt.Errorf("security: token too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", fmt.Errorf("security: open token: bad key or corrupt token")
	}
	return string(plain), nil
}

// MaskCredential returns a display form of credential material: the first
// four characters followed by ellipsis, or stars for short values.
func MaskCredential(plaintext string) string {
	if plaintext == "" {
		return ""
	}
	if len(plaintext) <= 8 {
		return "********"
	}
	return plaintext[:4] + "..." + plaintext[len(plaintext)-4:]
}
