package password

import (
	"strings"
	"testing"
)

// fastConfig keeps hashing cheap in tests.
func fastConfig(alg Algorithm) Config {
	cfg := DefaultConfig()
	cfg.Algorithm = alg
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	cfg.BcryptCost = 4
	return cfg
}

func TestHashAndVerify(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmArgon2id, AlgorithmBcrypt} {
		t.Run(string(alg), func(t *testing.T) {
			cfg := fastConfig(alg)
			h, err := cfg.Hash("correct horse battery")
			if err != nil {
				t.Fatalf("Hash error: %v", err)
			}
			ok, err := cfg.Verify(h, "correct horse battery")
			if err != nil || !ok {
				t.Fatalf("Verify match: ok=%v err=%v", ok, err)
			}
			ok, err = cfg.Verify(h, "wrong password")
			if err != nil || ok {
				t.Fatalf("Verify mismatch: ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestVerify_AcceptsOtherAlgorithm(t *testing.T) {
	bc := fastConfig(AlgorithmBcrypt)
	h, err := bc.Hash("s3cret-pass")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	ar := fastConfig(AlgorithmArgon2id)
	ok, err := ar.Verify(h, "s3cret-pass")
	if err != nil || !ok {
		t.Fatalf("argon2id config should verify bcrypt hash: ok=%v err=%v", ok, err)
	}
	if !ar.NeedsRehash(h) {
		t.Fatalf("expected NeedsRehash for bcrypt hash under argon2id config")
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	cfg := fastConfig(AlgorithmArgon2id)
	for _, h := range []string{"not-a-hash", "$argon2id$v=18$m=1,t=1,p=1$a$b", "$2b$garbage"} {
		ok, err := cfg.Verify(h, "whatever")
		if err != ErrInvalidHash || ok {
			t.Fatalf("%q: expected ErrInvalidHash, got ok=%v err=%v", h, ok, err)
		}
	}
}

func TestVerify_RejectsExcessiveArgonCost(t *testing.T) {
	strong := fastConfig(AlgorithmArgon2id)
	strong.Params.Iterations = 5
	h, err := strong.Hash("some password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	weak := fastConfig(AlgorithmArgon2id) // Iterations=1, limit 2
	if _, err := weak.Verify(h, "some password"); err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}

func TestHash_BcryptRejectsLongPassword(t *testing.T) {
	cfg := fastConfig(AlgorithmBcrypt)
	if _, err := cfg.Hash(strings.Repeat("a", 73)); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestValidate_MinMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.MinLength = 12
	cfg.Policy.MaxLength = 16

	if err := cfg.Validate("short"); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := cfg.Validate("this password is definitely too long"); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if err := cfg.Validate("goodpassw0rd!"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestPolicy_RejectVeryWeak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.RejectVeryWeak = true
	cfg.Policy.MinLength = 6

	for _, pw := range []string{"password", "11111111", "aaaaaaaa", "1234567"} {
		if err := cfg.Validate(pw); err != ErrWeakPassword {
			t.Fatalf("%q: expected ErrWeakPassword, got %v", pw, err)
		}
	}
	if err := cfg.Validate("a-very-ok-pass"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}
