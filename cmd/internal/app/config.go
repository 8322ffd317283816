package app

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains the runtime configuration of the server process.
// Session, password and auth API settings are loaded by their own packages.
type Config struct {
	HTTPAddr  string `mapstructure:"GATE_HTTP_ADDR"`
	LogLevel  string `mapstructure:"GATE_LOG_LEVEL"`
	LogFormat string `mapstructure:"GATE_LOG_FORMAT"`

	ReadHeaderTimeout time.Duration `mapstructure:"GATE_HTTP_READ_HEADER_TIMEOUT"`
	ReadTimeout       time.Duration `mapstructure:"GATE_HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `mapstructure:"GATE_HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `mapstructure:"GATE_HTTP_IDLE_TIMEOUT"`
	ShutdownTimeout   time.Duration `mapstructure:"GATE_HTTP_SHUTDOWN_TIMEOUT"`
	MaxHeaderBytes    int           `mapstructure:"GATE_HTTP_MAX_HEADER_BYTES"`

	// DatabaseURL empty means in-memory stores.
	DatabaseURL   string `mapstructure:"GATE_DATABASE_URL"`
	DBMaxConns    int32  `mapstructure:"GATE_DB_MAX_CONNS"`
	DBMinConns    int32  `mapstructure:"GATE_DB_MIN_CONNS"`
	DBAutoMigrate bool   `mapstructure:"GATE_DB_AUTO_MIGRATE"`

	// ReadinessRequireDB makes /readyz return 503 unless a database is configured and reachable.
	ReadinessRequireDB bool `mapstructure:"GATE_READINESS_REQUIRE_DB"`

	// RequireTokenHMAC demands GATE_TOKEN_HMAC_KEY (>= 32 bytes) for token hashing.
	RequireTokenHMAC bool `mapstructure:"GATE_REQUIRE_TOKEN_HMAC"`

	// DevMode allows an ephemeral signing key when none is configured.
	DevMode bool `mapstructure:"GATE_DEV_MODE"`
}

var defaults = map[string]any{
	"GATE_HTTP_ADDR":                "0.0.0.0:8080",
	"GATE_LOG_LEVEL":                "info",
	"GATE_LOG_FORMAT":               "json",
	"GATE_HTTP_READ_HEADER_TIMEOUT": "5s",
	"GATE_HTTP_READ_TIMEOUT":        "15s",
	"GATE_HTTP_WRITE_TIMEOUT":       "15s",
	"GATE_HTTP_IDLE_TIMEOUT":        "60s",
	"GATE_HTTP_SHUTDOWN_TIMEOUT":    "10s",
	"GATE_HTTP_MAX_HEADER_BYTES":    1 << 20,
	"GATE_DATABASE_URL":             "",
	"GATE_DB_MAX_CONNS":             10,
	"GATE_DB_MIN_CONNS":             0,
	"GATE_DB_AUTO_MIGRATE":          false,
	"GATE_READINESS_REQUIRE_DB":     false,
	"GATE_REQUIRE_TOKEN_HMAC":       false,
	"GATE_DEV_MODE":                 false,
}

// LoadConfig reads .env (if present), then the environment. Env vars override .env.
// Values from .env are also exported to the process environment so package-level
// loaders (session, password, auth API) see them.
func LoadConfig() (Config, error) {
	return loadConfig(".env")
}

func loadConfig(dotenv string) (Config, error) {
	v := viper.New()

	if dotenv != "" {
		v.SetConfigFile(dotenv)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err == nil {
			exportDotEnv(v)
		}
	}

	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("config: GATE_HTTP_ADDR must be set")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "pretty":
	default:
		return errors.New("config: GATE_LOG_FORMAT must be json or pretty")
	}
	if c.DBMaxConns < 0 || c.DBMinConns < 0 || (c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns) {
		return errors.New("config: invalid GATE_DB_MAX_CONNS / GATE_DB_MIN_CONNS")
	}
	if c.DBAutoMigrate && c.DatabaseURL == "" {
		return errors.New("config: GATE_DB_AUTO_MIGRATE requires GATE_DATABASE_URL")
	}
	return nil
}

// exportDotEnv copies GATE_* keys read from the .env file into the process
// environment without overriding variables that are already set.
func exportDotEnv(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if !strings.HasPrefix(name, "GATE_") {
			continue
		}
		if _, set := os.LookupEnv(name); set {
			continue
		}
		_ = os.Setenv(name, v.GetString(key))
	}
}
