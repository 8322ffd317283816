package authapi

import "testing"

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg := LoadConfigFromEnv()
	if cfg.TrustProxy {
		t.Fatalf("proxy headers must not be trusted by default")
	}
	if cfg.MaxBodyBytes != 64<<10 {
		t.Fatalf("unexpected max body: %d", cfg.MaxBodyBytes)
	}
	if !cfg.AllowRegistration {
		t.Fatalf("expected registration enabled by default")
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		check func(Config) bool
	}{
		{"trust proxy", "GATE_AUTH_TRUST_PROXY", "true", func(c Config) bool { return c.TrustProxy }},
		{"max body", "GATE_AUTH_MAX_BODY_BYTES", "1024", func(c Config) bool { return c.MaxBodyBytes == 1024 }},
		{"bad max body falls back", "GATE_AUTH_MAX_BODY_BYTES", "-1", func(c Config) bool { return c.MaxBodyBytes == 64<<10 }},
		{"registration off", "GATE_AUTH_ALLOW_REGISTRATION", "false", func(c Config) bool { return !c.AllowRegistration }},
		{"garbage bool falls back", "GATE_AUTH_TRUST_PROXY", "maybe", func(c Config) bool { return !c.TrustProxy }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if cfg := LoadConfigFromEnv(); !tc.check(cfg) {
				t.Fatalf("%s=%q produced %+v", tc.key, tc.value, cfg)
			}
		})
	}
}
