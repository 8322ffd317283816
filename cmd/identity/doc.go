// Package identity owns user accounts: lookup by id or username, and
// registration. Sessions are not stored here; see internal/auth/session.
package identity
