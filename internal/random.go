package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// MinRandomBytes is the smallest entropy accepted for opaque identifiers.
const MinRandomBytes = 16

// RandomToken returns n bytes from crypto/rand encoded as unpadded base64url.
func RandomToken(n int) (string, error) {
	if n < MinRandomBytes {
		return "", errors.New("random token shorter than 128 bits")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the unpadded base64url SHA-256 of token. Opaque secrets are
// stored only in this form.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
