package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gatehouse/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PostgresStore implements Store over PostgreSQL.
// The pool is owned by the caller.
type PostgresStore struct {
	db     DB
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultSchema is where migrations create the tables.
const DefaultSchema = "gatehouse"

// WithSchema sets the Postgres schema (default "gatehouse").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db DB, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{db: db, schema: DefaultSchema}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.db == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

// CreateUser inserts the user and its credentials in one transaction.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	u, err := prepareUser(op, in)
	if err != nil {
		return User{}, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var emailNorm *string
	if u.Email != nil {
		n := NormalizeEmail(*u.Email)
		emailNorm = &n
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO `+pgIdent(s.schema, "users")+` (
		     id, username, username_norm, email, email_norm, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Username, u.UsernameNorm, u.Email, emailNorm, u.CreatedAt,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO `+pgIdent(s.schema, "user_credentials")+` (user_id, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)`,
		u.ID, in.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}
	return u, nil
}

// GetUserByID loads a user by id.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, invalidInput(op, "missing user_id")
	}

	var u User
	err := s.db.QueryRow(ctx,
		`SELECT id, username, username_norm, email, created_at
		   FROM `+pgIdent(s.schema, "users")+`
		  WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Username, &u.UsernameNorm, &u.Email, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, userNotFound(op)
		}
		return User{}, err
	}
	return u, nil
}

// GetUserAuthByUsername loads a user and password hash by normalized username.
func (s *PostgresStore) GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error) {
	const op = "identity.GetUserAuthByUsername"

	norm := NormalizeUsername(username)
	if norm == "" {
		return UserAuth{}, invalidInput(op, "missing username")
	}

	var ua UserAuth
	err := s.db.QueryRow(ctx,
		`SELECT u.id, u.username, u.username_norm, u.email, u.created_at, c.password_hash
		   FROM `+pgIdent(s.schema, "users")+` u
		   JOIN `+pgIdent(s.schema, "user_credentials")+` c ON c.user_id = u.id
		  WHERE u.username_norm = $1`,
		norm,
	).Scan(&ua.User.ID, &ua.User.Username, &ua.User.UsernameNorm, &ua.User.Email, &ua.User.CreatedAt, &ua.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserAuth{}, userNotFound(op)
		}
		return UserAuth{}, err
	}
	return ua, nil
}

// prepareUser validates in and fills the derived fields shared by both stores.
func prepareUser(op string, in CreateUserInput) (User, error) {
	username := strings.TrimSpace(in.Username)
	if !ValidUsername(username) {
		return User{}, invalidInput(op, "invalid username")
	}
	email := trimPtr(in.Email)
	if email != nil && !ValidEmail(*email) {
		return User{}, invalidInput(op, "invalid email")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return User{}, invalidInput(op, "missing password hash")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}
	return User{
		ID:           id,
		Username:     username,
		UsernameNorm: NormalizeUsername(username),
		Email:        email,
		CreatedAt:    now,
	}, nil
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" { // unique_violation
		return "", false
	}
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_users_username_norm", strings.Contains(c, "username"):
		return "username", true
	case c == "uq_users_email_norm", strings.Contains(c, "email"):
		return "email", true
	default:
		return "unique", true
	}
}
