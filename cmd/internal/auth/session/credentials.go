package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"gatehouse/cmd/identity"
	"gatehouse/cmd/security/password"
)

// CredentialVerifier checks a username/password pair against the identity store.
type CredentialVerifier struct {
	users     identity.Store
	passwords password.Config
	timeout   time.Duration

	dummyOnce sync.Once
	dummyHash string
}

// NewCredentialVerifier returns a verifier. timeout bounds the user lookup.
func NewCredentialVerifier(users identity.Store, passwords password.Config, timeout time.Duration) *CredentialVerifier {
	return &CredentialVerifier{users: users, passwords: passwords, timeout: timeout}
}

// Verify returns the user on success, ErrUserNotFound or ErrInvalidCredentials on
// an authentication miss, or a wrapped store/hash error.
func (v *CredentialVerifier) Verify(ctx context.Context, username, plain string) (identity.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || plain == "" {
		return identity.User{}, ErrInvalidInput
	}

	lookupCtx := ctx
	if v.timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	ua, err := v.users.GetUserAuthByUsername(lookupCtx, username)
	switch {
	case identity.IsNotFound(err):
		// Spend the same hashing time as a real check.
		_, _ = v.passwords.Verify(v.dummy(), plain)
		return identity.User{}, ErrUserNotFound
	case identity.IsInvalidInput(err):
		return identity.User{}, ErrInvalidInput
	case err != nil:
		return identity.User{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := v.passwords.Verify(ua.PasswordHash, plain)
	if err != nil {
		return identity.User{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return identity.User{}, ErrInvalidCredentials
	}
	return ua.User, nil
}

func (v *CredentialVerifier) dummy() string {
	v.dummyOnce.Do(func() {
		cfg := v.passwords
		cfg.Policy.MinLength = 0
		if h, err := cfg.Hash("dummy-password-for-timing-only"); err == nil {
			v.dummyHash = h
		}
	})
	return v.dummyHash
}
