package session

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// TokenFormat selects the access-token encoding.
type TokenFormat string

const (
	FormatPaseto TokenFormat = "paseto"
	FormatJWT    TokenFormat = "jwt"
)

// Config defines all runtime configuration for the session subsystem.
type Config struct {
	// Issuer is the value set in the "iss" claim of access tokens.
	Issuer string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// ClockSkew is added to "now" when checking iat/nbf.
	ClockSkew time.Duration

	// RefreshTokenBytes is the entropy of opaque refresh tokens.
	RefreshTokenBytes int

	// MaxSessionsPerUser caps distinct live devices per user.
	MaxSessionsPerUser int

	// StoreTimeout bounds every store call.
	StoreTimeout time.Duration

	// SweepInterval is how often expired rows are deleted.
	SweepInterval time.Duration

	TokenFormat TokenFormat

	// PasetoV4SecretKeyHex is the hex Ed25519 secret key for v4.public tokens.
	PasetoV4SecretKeyHex string

	// JWTSecret is the HS256 key for JWT access tokens.
	JWTSecret string
}

// DefaultConfig returns the defaults; signing keys are left empty.
func DefaultConfig() Config {
	return Config{
		Issuer:             "gatehouse",
		AccessTokenTTL:     7 * 24 * time.Hour,
		RefreshTokenTTL:    365 * 24 * time.Hour,
		ClockSkew:          30 * time.Second,
		RefreshTokenBytes:  32,
		MaxSessionsPerUser: 5,
		StoreTimeout:       3 * time.Second,
		SweepInterval:      time.Hour,
		TokenFormat:        FormatPaseto,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Signing key (required for the selected format):
//   - GATE_PASETO_V4_SECRET_KEY_HEX (paseto)
//   - GATE_JWT_SECRET (jwt, >= 32 bytes)
//
// Optional:
//   - GATE_ACCESS_TOKEN_FORMAT (paseto|jwt)
//   - GATE_AUTH_ISSUER
//   - GATE_AUTH_ACCESS_TTL, GATE_AUTH_REFRESH_TTL, GATE_AUTH_CLOCK_SKEW
//   - GATE_AUTH_REFRESH_TOKEN_BYTES (32..64)
//   - GATE_MAX_SESSIONS_PER_USER
//   - GATE_STORE_TIMEOUT
//   - GATE_SESSION_SWEEP_INTERVAL
//
// Returns ErrConfig (or ErrSigningKeyMissing) if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("GATE_AUTH_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	if v := strings.TrimSpace(os.Getenv("GATE_ACCESS_TOKEN_FORMAT")); v != "" {
		switch TokenFormat(strings.ToLower(v)) {
		case FormatPaseto:
			cfg.TokenFormat = FormatPaseto
		case FormatJWT:
			cfg.TokenFormat = FormatJWT
		default:
			return Config{}, ErrConfig
		}
	}

	positive := []struct {
		key string
		dst *time.Duration
	}{
		{"GATE_AUTH_ACCESS_TTL", &cfg.AccessTokenTTL},
		{"GATE_AUTH_REFRESH_TTL", &cfg.RefreshTokenTTL},
		{"GATE_STORE_TIMEOUT", &cfg.StoreTimeout},
		{"GATE_SESSION_SWEEP_INTERVAL", &cfg.SweepInterval},
	}
	for _, e := range positive {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		*e.dst = d
	}

	if v := os.Getenv("GATE_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	if v := os.Getenv("GATE_AUTH_REFRESH_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenBytes = n
	}

	if v := os.Getenv("GATE_MAX_SESSIONS_PER_USER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, ErrConfig
		}
		cfg.MaxSessionsPerUser = n
	}

	cfg.PasetoV4SecretKeyHex = strings.TrimSpace(os.Getenv("GATE_PASETO_V4_SECRET_KEY_HEX"))
	cfg.JWTSecret = strings.TrimSpace(os.Getenv("GATE_JWT_SECRET"))

	if cfg.RefreshTokenTTL < cfg.AccessTokenTTL {
		return Config{}, ErrConfig
	}

	switch cfg.TokenFormat {
	case FormatPaseto:
		if cfg.PasetoV4SecretKeyHex == "" {
			return cfg, ErrSigningKeyMissing
		}
	case FormatJWT:
		if cfg.JWTSecret == "" {
			return cfg, ErrSigningKeyMissing
		}
		if len(cfg.JWTSecret) < minJWTSecretBytes {
			return Config{}, ErrConfig
		}
	}

	return cfg, nil
}
