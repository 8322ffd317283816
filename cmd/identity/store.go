package identity

import (
	"context"
	"time"
)

// User is the account a session belongs to.
type User struct {
	ID           string
	Username     string
	UsernameNorm string
	Email        *string
	CreatedAt    time.Time
}

// UserAuth is a User plus its stored password hash. It never leaves the auth path.
type UserAuth struct {
	User         User
	PasswordHash string
}

// CreateUserInput describes a registration. PasswordHash is already encoded
// (see HashPassword); the store never sees plaintext.
type CreateUserInput struct {
	Username     string
	Email        *string
	PasswordHash string
	Now          time.Time
}

// Store is the identity persistence boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	// GetUserAuthByUsername matches case-insensitively. Missing users return NotFoundError.
	GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error)
}
