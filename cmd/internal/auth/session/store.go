package session

import (
	"context"
	"time"
)

// MaxDeviceIDLen is the longest device id a session accepts (chk_sessions_device_id_len).
const MaxDeviceIDLen = 128

// Row mirrors a gatehouse.sessions row.
type Row struct {
	ID               string
	UserID           string
	DeviceID         string
	AccessTokenHash  string
	RefreshTokenHash string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	CreatedAt        time.Time
	LastRefreshAt    time.Time
	LastCheckAt      *time.Time
	RefreshCount     int
	UserAgent        *string
	IP               *string
}

// UpsertInput creates a row or replaces the tokens of the existing (UserID, DeviceID) row.
// ID is used only when a new row is inserted.
type UpsertInput struct {
	ID               string
	UserID           string
	DeviceID         string
	AccessTokenHash  string
	RefreshTokenHash string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Now              time.Time
	UserAgent        string
	IP               string
}

// RotateInput swaps both tokens of the row currently holding OldRefreshHash on DeviceID.
type RotateInput struct {
	OldRefreshHash   string
	DeviceID         string
	AccessTokenHash  string
	RefreshTokenHash string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Now              time.Time
}

// Store abstracts persistence for session rows. All reads treat rows whose
// relevant expiry is <= now as absent. Misses return ErrSessionNotFound;
// any other error is a store failure.
type Store interface {
	// Upsert inserts, or on (user_id, device_id) conflict replaces tokens and
	// expiries and increments refresh_count.
	Upsert(ctx context.Context, in UpsertInput) (Row, error)

	FindByRefresh(ctx context.Context, refreshHash, deviceID string, now time.Time) (Row, error)
	FindByAccess(ctx context.Context, accessHash, deviceID string, now time.Time) (Row, error)

	// Rotate is a single conditional update; zero matched rows is ErrSessionNotFound.
	Rotate(ctx context.Context, in RotateInput) (Row, error)

	TouchLastCheck(ctx context.Context, sessionID string, now time.Time) error

	DeleteByDevice(ctx context.Context, userID, deviceID string) (int64, error)
	DeleteAll(ctx context.Context, userID string) (int64, error)

	CountActive(ctx context.Context, userID string, now time.Time) (int, error)
	// ListByUser returns live rows ordered by created_at.
	ListByUser(ctx context.Context, userID string, now time.Time) ([]Row, error)

	// DeleteExpired removes rows whose refresh expiry has passed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
