package app

import (
	"errors"

	"gatehouse/cmd/security/token"
)

// ValidateSecurityConfig enforces the token-hashing policy at startup and
// returns the hasher the session service must use.
func ValidateSecurityConfig(cfg Config) (*token.Hasher, error) {
	h, err := token.HasherFromEnv(cfg.RequireTokenHMAC)
	switch {
	case errors.Is(err, token.ErrHMACKeyMissing):
		return nil, errors.New("security policy: GATE_REQUIRE_TOKEN_HMAC=true but GATE_TOKEN_HMAC_KEY is missing")
	case errors.Is(err, token.ErrHMACKeyTooShort):
		return nil, errors.New("security policy: GATE_REQUIRE_TOKEN_HMAC=true but GATE_TOKEN_HMAC_KEY is too short (min 32 bytes)")
	case err != nil:
		return nil, err
	}

	if cfg.RequireTokenHMAC && !h.HMAC() {
		return nil, errors.New("security policy: GATE_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}
	return h, nil
}
