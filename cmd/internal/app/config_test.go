package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.HTTPAddr != "0.0.0.0:8080" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ReadTimeout != 15*time.Second || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected timeouts: %+v", cfg)
	}
	if cfg.DBMaxConns != 10 || cfg.MaxHeaderBytes != 1<<20 {
		t.Fatalf("unexpected limits: %+v", cfg)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("GATE_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("GATE_HTTP_READ_TIMEOUT", "3s")
	t.Setenv("GATE_DB_MAX_CONNS", "4")
	t.Setenv("GATE_REQUIRE_TOKEN_HMAC", "true")
	t.Setenv("GATE_LOG_FORMAT", "pretty")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9999" || cfg.ReadTimeout != 3*time.Second || cfg.DBMaxConns != 4 {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if !cfg.RequireTokenHMAC || cfg.LogFormat != "pretty" {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := []struct {
		name, key, value string
	}{
		{"log format", "GATE_LOG_FORMAT", "xml"},
		{"migrate without db", "GATE_DB_AUTO_MIGRATE", "true"},
		{"min above max", "GATE_DB_MIN_CONNS", "50"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := loadConfig(""); err == nil {
				t.Fatalf("expected error for %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "GATE_HTTP_ADDR=127.0.0.1:7000\nGATE_TEST_DOTENV_EXPORT=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// Setenv registers restore-on-cleanup; the keys start unset so the file applies.
	for _, k := range []string{"GATE_HTTP_ADDR", "GATE_TEST_DOTENV_EXPORT"} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:7000" {
		t.Fatalf("expected .env value, got %q", cfg.HTTPAddr)
	}
	if got := os.Getenv("GATE_TEST_DOTENV_EXPORT"); got != "from-file" {
		t.Fatalf("expected .env export, got %q", got)
	}
}
