package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gatehouse/cmd/internal/auth/session"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setDevEnv clears settings that could leak in from the developer's shell.
func setDevEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GATE_PASETO_V4_SECRET_KEY_HEX",
		"GATE_JWT_SECRET",
		"GATE_ACCESS_TOKEN_FORMAT",
		"GATE_TOKEN_HMAC_KEY",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("GATE_ARGON2_MEMORY_KIB", "8192")
	t.Setenv("GATE_ARGON2_ITERATIONS", "1")
}

func devConfig() Config {
	return Config{
		HTTPAddr:  "127.0.0.1:0",
		LogLevel:  "error",
		LogFormat: "json",
		DevMode:   true,
	}
}

func TestNew_InMemoryEndToEnd(t *testing.T) {
	setDevEnv(t)

	a, err := New(t.Context(), devConfig(), quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("healthz status=%d request-id=%q", resp.StatusCode, resp.Header.Get("X-Request-ID"))
	}

	body := `{"username":"alice","password":"correct-horse-battery-9","device_id":"laptop"}`
	resp, err = http.Post(srv.URL+"/auth/register", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	var reg struct {
		Session struct {
			AccessToken string `json:"access_token"`
			DeviceID    string `json:"device_id"`
		} `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		t.Fatalf("decode register: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || reg.Session.AccessToken == "" || reg.Session.DeviceID != "laptop" {
		t.Fatalf("register status=%d body=%+v", resp.StatusCode, reg)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/auth/validate", nil)
	req.Header.Set("Authorization", "Bearer "+reg.Session.AccessToken)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("validate status=%d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	for _, want := range []string{
		"gatehouse_session_validations_total",
		"gatehouse_http_requests_total",
		"go_goroutines",
	} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("metrics missing %q", want)
		}
	}

	a.svc.Wait()
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		requireDB bool
		db        Pinger
		want      int
	}{
		{"no db allowed", false, nil, http.StatusOK},
		{"no db required", true, nil, http.StatusServiceUnavailable},
		{"db up", true, fakePinger{}, http.StatusOK},
		{"db down", false, fakePinger{err: errors.New("down")}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			mux := http.NewServeMux()
			registerHTTP(mux, quietLogger(), Config{ReadinessRequireDB: tc.requireDB}, tc.db, nil, nil)

			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rr.Code != tc.want {
				t.Fatalf("status=%d want=%d", rr.Code, tc.want)
			}
		})
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestNew_SigningKeyRequiredOutsideDevMode(t *testing.T) {
	setDevEnv(t)

	cfg := devConfig()
	cfg.DevMode = false
	_, err := New(t.Context(), cfg, quietLogger())
	if !errors.Is(err, session.ErrSigningKeyMissing) {
		t.Fatalf("expected ErrSigningKeyMissing, got %v", err)
	}
}

func TestLoadSessionConfig_DevModeJWT(t *testing.T) {
	setDevEnv(t)
	t.Setenv("GATE_ACCESS_TOKEN_FORMAT", "jwt")

	cfg, err := loadSessionConfig(devConfig(), quietLogger())
	if err != nil {
		t.Fatalf("loadSessionConfig: %v", err)
	}
	if cfg.TokenFormat != session.FormatJWT || len(cfg.JWTSecret) != 64 {
		t.Fatalf("expected ephemeral JWT secret, got format=%s len=%d", cfg.TokenFormat, len(cfg.JWTSecret))
	}
}

func TestValidateSecurityConfig(t *testing.T) {
	cases := []struct {
		name    string
		require bool
		key     string
		wantErr bool
		hmac    bool
	}{
		{"not required no key", false, "", false, false},
		{"not required with key", false, strings.Repeat("k", 32), false, true},
		{"required missing", true, "", true, false},
		{"required short", true, "short", true, false},
		{"required ok", true, strings.Repeat("k", 32), false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("GATE_TOKEN_HMAC_KEY", tc.key)
			h, err := ValidateSecurityConfig(Config{RequireTokenHMAC: tc.require})
			if (err != nil) != tc.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tc.wantErr)
			}
			if err == nil && h.HMAC() != tc.hmac {
				t.Fatalf("HMAC()=%v want %v", h.HMAC(), tc.hmac)
			}
		})
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	setDevEnv(t)

	a, err := New(t.Context(), devConfig(), quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}
