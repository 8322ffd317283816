package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate checks password against the policy. Length counts runes.
func (c Config) Validate(password string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	case c.Policy.RejectVeryWeak && looksVeryWeak(password):
		return ErrWeakPassword
	}
	return nil
}

var trivialPasswords = map[string]struct{}{
	"password":    {},
	"password123": {},
	"123456":      {},
	"123456789":   {},
	"qwerty":      {},
	"qwerty123":   {},
	"11111111":    {},
	"letmein":     {},
}

// looksVeryWeak catches repeated characters, short PINs and a handful of well-known passwords.
func looksVeryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}
	if _, ok := trivialPasswords[strings.ToLower(s)]; ok {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	repeated := true
	digits := true
	for _, r := range s {
		if r != first {
			repeated = false
		}
		if !unicode.IsDigit(r) {
			digits = false
		}
	}
	return repeated || (digits && utf8.RuneCountInString(s) < 12)
}
