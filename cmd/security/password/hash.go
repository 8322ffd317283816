package password

import "strings"

// Hash validates password against the policy and encodes it with the configured algorithm.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}
	switch c.Algorithm {
	case AlgorithmArgon2id, "":
		return c.hashArgon2id(password)
	case AlgorithmBcrypt:
		return c.hashBcrypt(password)
	default:
		return "", ErrUnknownAlgorithm
	}
}

// Verify checks password against encodedHash, whichever supported format it is in.
// Returns (false, nil) on mismatch and (false, ErrInvalidHash) on malformed input.
func (c Config) Verify(encodedHash, password string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return c.verifyArgon2id(encodedHash, password)
	case isBcryptHash(encodedHash):
		return c.verifyBcrypt(encodedHash, password)
	default:
		return false, ErrInvalidHash
	}
}

// NeedsRehash reports whether encodedHash was produced with a different algorithm than configured.
func (c Config) NeedsRehash(encodedHash string) bool {
	want := c.Algorithm
	if want == "" {
		want = AlgorithmArgon2id
	}
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return want != AlgorithmArgon2id
	case isBcryptHash(encodedHash):
		return want != AlgorithmBcrypt
	default:
		return true
	}
}
