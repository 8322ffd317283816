package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

func (c Config) hashBcrypt(password string) (string, error) {
	// bcrypt silently truncates; refuse instead.
	if len(password) > 72 {
		return "", ErrPasswordTooLong
	}
	cost := c.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c Config) verifyBcrypt(encodedHash, password string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, ErrInvalidHash
	}
	limit := c.BcryptCost
	if limit < bcrypt.DefaultCost {
		limit = bcrypt.DefaultCost
	}
	if cost > limit+2 {
		return false, ErrInvalidHash
	}
	err = bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, ErrInvalidHash
	}
}
