package password

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Algorithm selects the hash produced by Config.Hash.
type Algorithm string

const (
	AlgorithmArgon2id Algorithm = "argon2id"
	AlgorithmBcrypt   Algorithm = "bcrypt"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds accepted passwords at registration.
type Policy struct {
	MinLength      int
	MaxLength      int
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Algorithm  Algorithm
	Params     Argon2idParams
	BcryptCost int
	Policy     Policy
}

// DefaultConfig returns Argon2id with 64 MiB / 3 passes and bcrypt cost 12 as the alternative.
func DefaultConfig() Config {
	// Clamp to [1..4] so container CPU counts don't blow up memory per hash.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Algorithm: AlgorithmArgon2id,
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		BcryptCost: 12,
		Policy: Policy{
			MinLength: 8,
			MaxLength: 256,
		},
	}
}

// FromEnv loads config from environment variables.
//
// Env surface:
//   - GATE_PASSWORD_ALGORITHM (argon2id|bcrypt)
//   - GATE_PASSWORD_MIN_LEN, GATE_PASSWORD_MAX_LEN
//   - GATE_PASSWORD_REJECT_VERY_WEAK
//   - GATE_ARGON2_MEMORY_KIB, GATE_ARGON2_ITERATIONS, GATE_ARGON2_PARALLELISM
//   - GATE_ARGON2_SALT_LEN, GATE_ARGON2_KEY_LEN
//   - GATE_BCRYPT_COST
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("GATE_PASSWORD_ALGORITHM"); ok {
		a, err := ParseAlgorithm(v)
		if err != nil {
			return Config{}, fmt.Errorf("GATE_PASSWORD_ALGORITHM: %w", err)
		}
		cfg.Algorithm = a
	}

	ints := []struct {
		key      string
		min, max int
		dst      *int
	}{
		{"GATE_PASSWORD_MIN_LEN", 1, 1024, &cfg.Policy.MinLength},
		{"GATE_PASSWORD_MAX_LEN", 1, 4096, &cfg.Policy.MaxLength},
		{"GATE_BCRYPT_COST", bcrypt.MinCost, bcrypt.MaxCost, &cfg.BcryptCost},
	}
	for _, e := range ints {
		v, ok := os.LookupEnv(e.key)
		if !ok {
			continue
		}
		n, err := parseIntInRange(v, e.min, e.max)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", e.key, err)
		}
		*e.dst = n
	}

	u32s := []struct {
		key      string
		min, max uint32
		dst      *uint32
	}{
		{"GATE_ARGON2_MEMORY_KIB", 8 * 1024, 1024 * 1024, &cfg.Params.MemoryKiB},
		{"GATE_ARGON2_ITERATIONS", 1, 20, &cfg.Params.Iterations},
		{"GATE_ARGON2_SALT_LEN", 8, 64, &cfg.Params.SaltLength},
		{"GATE_ARGON2_KEY_LEN", 16, 64, &cfg.Params.KeyLength},
	}
	for _, e := range u32s {
		v, ok := os.LookupEnv(e.key)
		if !ok {
			continue
		}
		u, err := parseU32InRange(v, e.min, e.max)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", e.key, err)
		}
		*e.dst = u
	}

	if v, ok := os.LookupEnv("GATE_ARGON2_PARALLELISM"); ok {
		u, err := parseU32InRange(v, 1, math.MaxUint8)
		if err != nil {
			return Config{}, fmt.Errorf("GATE_ARGON2_PARALLELISM: %w", err)
		}
		cfg.Params.Parallelism = uint8(u) // #nosec G115 -- bounded above.
	}

	if v, ok := os.LookupEnv("GATE_PASSWORD_REJECT_VERY_WEAK"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("GATE_PASSWORD_REJECT_VERY_WEAK: invalid boolean")
		}
		cfg.Policy.RejectVeryWeak = b
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

// ParseAlgorithm maps a config string to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case AlgorithmArgon2id, "":
		return AlgorithmArgon2id, nil
	case AlgorithmBcrypt:
		return AlgorithmBcrypt, nil
	default:
		return "", ErrUnknownAlgorithm
	}
}

func parseIntInRange(s string, minVal, maxVal int) (int, error) {
	i64, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}

func parseU32InRange(s string, minVal, maxVal uint32) (uint32, error) {
	u64, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}
	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}
