package authapi

import (
	"os"
	"strconv"
	"strings"
)

const defaultMaxBodyBytes = 64 << 10

// Config controls HTTP-level auth behavior.
type Config struct {
	// TrustProxy makes device derivation honor X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	// MaxBodyBytes bounds JSON request bodies; larger bodies get 413.
	MaxBodyBytes int64

	AllowRegistration bool
}

// LoadConfigFromEnv reads GATE_AUTH_TRUST_PROXY, GATE_AUTH_MAX_BODY_BYTES and
// GATE_AUTH_ALLOW_REGISTRATION. Unparseable values keep the default.
func LoadConfigFromEnv() Config {
	return Config{
		TrustProxy:        envOr("GATE_AUTH_TRUST_PROXY", false, strconv.ParseBool, nil),
		MaxBodyBytes:      envOr("GATE_AUTH_MAX_BODY_BYTES", int64(defaultMaxBodyBytes), parseInt64, func(n int64) bool { return n > 0 }),
		AllowRegistration: envOr("GATE_AUTH_ALLOW_REGISTRATION", true, strconv.ParseBool, nil),
	}
}

func parseInt64(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

func envOr[T any](key string, def T, parse func(string) (T, error), valid func(T) bool) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil || (valid != nil && !valid(v)) {
		return def
	}
	return v
}
