package session

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfigFromEnv_MissingSecretKey(t *testing.T) {
	t.Setenv("GATE_PASETO_V4_SECRET_KEY_HEX", "")
	cfg, err := LoadConfigFromEnv()
	if !errors.Is(err, ErrSigningKeyMissing) {
		t.Fatalf("expected ErrSigningKeyMissing, got %v", err)
	}
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("ErrSigningKeyMissing must wrap ErrConfig")
	}
	// The rest of the config is still usable so dev mode can fill in a key.
	if cfg.MaxSessionsPerUser != 5 {
		t.Fatalf("expected defaults alongside missing key, got %+v", cfg)
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"negative access ttl", map[string]string{"GATE_AUTH_ACCESS_TTL": "-5m"}},
		{"garbage refresh ttl", map[string]string{"GATE_AUTH_REFRESH_TTL": "soon"}},
		{"refresh shorter than access", map[string]string{"GATE_AUTH_ACCESS_TTL": "48h", "GATE_AUTH_REFRESH_TTL": "24h"}},
		{"small refresh bytes", map[string]string{"GATE_AUTH_REFRESH_TOKEN_BYTES": "16"}},
		{"zero session cap", map[string]string{"GATE_MAX_SESSIONS_PER_USER": "0"}},
		{"negative skew", map[string]string{"GATE_AUTH_CLOCK_SKEW": "-1s"}},
		{"unknown format", map[string]string{"GATE_ACCESS_TOKEN_FORMAT": "saml"}},
		{"short jwt secret", map[string]string{"GATE_ACCESS_TOKEN_FORMAT": "jwt", "GATE_JWT_SECRET": "short"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("GATE_PASETO_V4_SECRET_KEY_HEX", GeneratePasetoV4SecretKeyHex())
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfigFromEnv()
			if !errors.Is(err, ErrConfig) || errors.Is(err, ErrSigningKeyMissing) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestLoadConfigFromEnv_Valid(t *testing.T) {
	t.Setenv("GATE_PASETO_V4_SECRET_KEY_HEX", GeneratePasetoV4SecretKeyHex())
	t.Setenv("GATE_AUTH_ISSUER", "gatehouse-test")
	t.Setenv("GATE_AUTH_ACCESS_TTL", "10m")
	t.Setenv("GATE_AUTH_REFRESH_TTL", "720h")
	t.Setenv("GATE_AUTH_CLOCK_SKEW", "20s")
	t.Setenv("GATE_AUTH_REFRESH_TOKEN_BYTES", "48")
	t.Setenv("GATE_MAX_SESSIONS_PER_USER", "3")
	t.Setenv("GATE_STORE_TIMEOUT", "2s")
	t.Setenv("GATE_SESSION_SWEEP_INTERVAL", "15m")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Issuer != "gatehouse-test" {
		t.Fatalf("issuer mismatch: %q", cfg.Issuer)
	}
	if cfg.AccessTokenTTL != 10*time.Minute {
		t.Fatalf("access ttl mismatch: %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 720*time.Hour {
		t.Fatalf("refresh ttl mismatch: %v", cfg.RefreshTokenTTL)
	}
	if cfg.ClockSkew != 20*time.Second {
		t.Fatalf("clock skew mismatch: %v", cfg.ClockSkew)
	}
	if cfg.RefreshTokenBytes != 48 {
		t.Fatalf("refresh token bytes mismatch: %d", cfg.RefreshTokenBytes)
	}
	if cfg.MaxSessionsPerUser != 3 {
		t.Fatalf("session cap mismatch: %d", cfg.MaxSessionsPerUser)
	}
	if cfg.StoreTimeout != 2*time.Second || cfg.SweepInterval != 15*time.Minute {
		t.Fatalf("timeouts mismatch: %v %v", cfg.StoreTimeout, cfg.SweepInterval)
	}
	if cfg.TokenFormat != FormatPaseto {
		t.Fatalf("expected paseto default, got %q", cfg.TokenFormat)
	}
}

func TestLoadConfigFromEnv_JWT(t *testing.T) {
	t.Setenv("GATE_ACCESS_TOKEN_FORMAT", "JWT")
	t.Setenv("GATE_JWT_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TokenFormat != FormatJWT {
		t.Fatalf("expected jwt, got %q", cfg.TokenFormat)
	}
}
