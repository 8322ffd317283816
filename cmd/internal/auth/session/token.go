package session

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// Subject is what an access token asserts.
type Subject struct {
	UserID   string
	Username string
	DeviceID string
}

// AccessClaims is the decoded, verified content of an access token.
type AccessClaims struct {
	Subject
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Issuer    string
}

// AccessTokenManager issues and verifies access tokens.
type AccessTokenManager interface {
	Issue(sub Subject, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (AccessClaims, error)
	Format() TokenFormat
}

// NewAccessTokenManager builds the manager selected by cfg.TokenFormat.
func NewAccessTokenManager(cfg Config) (AccessTokenManager, error) {
	switch cfg.TokenFormat {
	case FormatPaseto, "":
		return NewPasetoV4PublicManager(cfg)
	case FormatJWT:
		return NewJWTManager(cfg)
	default:
		return nil, ErrConfig
	}
}

// newTokenID returns a random identifier so that two tokens issued for the
// same subject in the same second never collide.
func newTokenID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (c AccessClaims) valid() bool {
	return c.UserID != "" && c.DeviceID != ""
}
