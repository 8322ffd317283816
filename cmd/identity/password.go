package identity

import (
	"errors"

	"gatehouse/cmd/security/password"
)

// HashPassword applies the password policy and encodes plain for storage.
// Policy failures come back as ErrInvalidInput so handlers can map them to 400.
func HashPassword(cfg password.Config, plain string) (string, error) {
	const op = "identity.HashPassword"

	enc, err := cfg.Hash(plain)
	if err == nil {
		return enc, nil
	}
	switch {
	case errors.Is(err, password.ErrPasswordTooShort):
		return "", invalidInput(op, "password too short")
	case errors.Is(err, password.ErrPasswordTooLong):
		return "", invalidInput(op, "password too long")
	case errors.Is(err, password.ErrWeakPassword):
		return "", invalidInput(op, "weak password")
	default:
		return "", err
	}
}
