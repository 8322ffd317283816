package token

import (
	"crypto/hmac"
	"errors"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"os"
	"strings"
)

const (
	// HMACEnvKey is the env var name for the token HMAC secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	HMACEnvKey = "GATE_TOKEN_HMAC_KEY"

	// MinHMACKeyBytes is the smallest key accepted when HMAC is required.
	MinHMACKeyBytes = 32
)

var (
	ErrHMACKeyMissing  = errors.New("token: HMAC key missing")
	ErrHMACKeyTooShort = errors.New("token: HMAC key too short")
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// Hasher turns plaintext tokens into storage digests.
// The zero value hashes with plain SHA-256.
type Hasher struct {
	key []byte
}

// NewHasher returns a Hasher. An empty key selects SHA-256 mode.
func NewHasher(key []byte) *Hasher {
	if len(key) == 0 {
		return &Hasher{}
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Hasher{key: k}
}

// HasherFromEnv builds a Hasher from GATE_TOKEN_HMAC_KEY.
// With requireHMAC set, a missing or short key is an error instead of a SHA-256 fallback.
func HasherFromEnv(requireHMAC bool) (*Hasher, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		if requireHMAC {
			return nil, ErrHMACKeyMissing
		}
		return NewHasher(nil), nil
	}
	if requireHMAC && len(raw) < MinHMACKeyBytes {
		return nil, ErrHMACKeyTooShort
	}
	return NewHasher([]byte(raw)), nil
}

// HMAC reports whether the hasher is keyed.
func (h *Hasher) HMAC() bool {
	return h != nil && len(h.key) > 0
}

// Hash returns the 64-char hex digest of tok.
func (h *Hasher) Hash(tok string) string {
	if !h.HMAC() {
		return HashSHA256Hex(tok)
	}
	return HashHMACSHA256Hex(tok, h.key)
}

// Equal compares a plaintext token against a stored digest in constant time.
func (h *Hasher) Equal(tok, digestHex string) bool {
	got := h.Hash(tok)
	if len(got) != len(digestHex) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(digestHex)) == 1
}

// HMACKeyFromEnv returns the configured HMAC key bytes (trimmed), enforcing a minimum byte length.
func HMACKeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return b, nil
}
