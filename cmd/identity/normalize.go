package identity

import (
	"regexp"
	"strings"
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,63}$`)

// NormalizeUsername is the case-insensitive lookup key for a username.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail is the case-insensitive lookup key for an email.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidUsername reports whether s (already trimmed) is an acceptable username.
func ValidUsername(s string) bool {
	return usernameRe.MatchString(s)
}

// ValidEmail is a shape check only: one '@' with something on both sides.
func ValidEmail(s string) bool {
	at := strings.IndexByte(s, '@')
	return at > 0 && at == strings.LastIndexByte(s, '@') && at < len(s)-1 && !strings.ContainsAny(s, " \t\r\n")
}
