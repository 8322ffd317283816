package session

import (
	"crypto/rand"
	"encoding/base64"
)

const maxRefreshTokenLen = 4096

// newOpaqueRefreshToken returns nBytes of randomness, base64url without padding.
func newOpaqueRefreshToken(nBytes int) (string, error) {
	if nBytes < 32 {
		nBytes = 32
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
