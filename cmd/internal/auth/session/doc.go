// Package session implements device-bound login sessions.
//
// Each (user, device) pair owns at most one row. Logging in again from the same
// device replaces that row's tokens; a user may hold at most MaxSessionsPerUser
// live devices. Access tokens are signed (PASETO v4.public or JWT HS256) and are
// only honored while their row still exists. Refresh tokens are opaque,
// single-use, and rotated with one conditional UPDATE, so of two concurrent
// refreshes with the same token exactly one wins.
//
// Both tokens are stored as hex digests (see security/token). Expired rows are
// ignored by every read and removed by the Sweeper.
package session
