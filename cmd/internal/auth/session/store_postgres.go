package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using PostgreSQL (gatehouse.sessions).
type PostgresStore struct {
	db    DB
	table string
}

var schemaRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewPostgresStore creates a Postgres-backed session store. An empty schema means "gatehouse".
func NewPostgresStore(db DB, schema string) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("session: nil pool")
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = "gatehouse"
	}
	if !schemaRe.MatchString(schema) {
		return nil, fmt.Errorf("session: invalid schema identifier")
	}
	return &PostgresStore{db: db, table: pgx.Identifier{schema, "sessions"}.Sanitize()}, nil
}

const rowColumns = `id, user_id, device_id, access_token_hash, refresh_token_hash,
	access_expires_at, refresh_expires_at, created_at, last_refresh_at, last_check_at,
	refresh_count, user_agent, host(ip)`

func scanRow(r pgx.Row) (Row, error) {
	var row Row
	err := r.Scan(
		&row.ID,
		&row.UserID,
		&row.DeviceID,
		&row.AccessTokenHash,
		&row.RefreshTokenHash,
		&row.AccessExpiresAt,
		&row.RefreshExpiresAt,
		&row.CreatedAt,
		&row.LastRefreshAt,
		&row.LastCheckAt,
		&row.RefreshCount,
		&row.UserAgent,
		&row.IP,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrSessionNotFound
	}
	if err != nil {
		return Row{}, err
	}
	return row, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, in UpsertInput) (Row, error) {
	return scanRow(s.db.QueryRow(ctx, `
		INSERT INTO `+s.table+` AS s (
			id, user_id, device_id, access_token_hash, refresh_token_hash,
			access_expires_at, refresh_expires_at, created_at, last_refresh_at,
			refresh_count, user_agent, ip
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $8,
			0, $9, $10::inet
		)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			access_token_hash = EXCLUDED.access_token_hash,
			refresh_token_hash = EXCLUDED.refresh_token_hash,
			access_expires_at = EXCLUDED.access_expires_at,
			refresh_expires_at = EXCLUDED.refresh_expires_at,
			last_refresh_at = EXCLUDED.last_refresh_at,
			refresh_count = s.refresh_count + 1,
			user_agent = EXCLUDED.user_agent,
			ip = EXCLUDED.ip
		RETURNING `+rowColumns,
		in.ID, in.UserID, in.DeviceID, in.AccessTokenHash, in.RefreshTokenHash,
		in.AccessExpiresAt, in.RefreshExpiresAt, in.Now,
		nullIfEmpty(in.UserAgent), nullIfEmpty(in.IP),
	))
}

func (s *PostgresStore) FindByRefresh(ctx context.Context, refreshHash, deviceID string, now time.Time) (Row, error) {
	return scanRow(s.db.QueryRow(ctx, `
		SELECT `+rowColumns+`
		FROM `+s.table+`
		WHERE refresh_token_hash = $1
		  AND device_id = $2
		  AND refresh_expires_at > $3
	`, refreshHash, deviceID, now))
}

func (s *PostgresStore) FindByAccess(ctx context.Context, accessHash, deviceID string, now time.Time) (Row, error) {
	return scanRow(s.db.QueryRow(ctx, `
		SELECT `+rowColumns+`
		FROM `+s.table+`
		WHERE access_token_hash = $1
		  AND device_id = $2
		  AND access_expires_at > $3
	`, accessHash, deviceID, now))
}

func (s *PostgresStore) Rotate(ctx context.Context, in RotateInput) (Row, error) {
	return scanRow(s.db.QueryRow(ctx, `
		UPDATE `+s.table+`
		SET access_token_hash = $1,
			refresh_token_hash = $2,
			access_expires_at = $3,
			refresh_expires_at = $4,
			last_refresh_at = $5,
			refresh_count = refresh_count + 1
		WHERE refresh_token_hash = $6
		  AND device_id = $7
		  AND refresh_expires_at > $5
		RETURNING `+rowColumns,
		in.AccessTokenHash, in.RefreshTokenHash, in.AccessExpiresAt, in.RefreshExpiresAt, in.Now,
		in.OldRefreshHash, in.DeviceID,
	))
}

func (s *PostgresStore) TouchLastCheck(ctx context.Context, sessionID string, now time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE `+s.table+`
		SET last_check_at = $1
		WHERE id = $2
	`, now, sessionID)
	return err
}

func (s *PostgresStore) DeleteByDevice(ctx context.Context, userID, deviceID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM `+s.table+`
		WHERE user_id = $1 AND device_id = $2
	`, userID, deviceID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context, userID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM `+s.table+`
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CountActive(ctx context.Context, userID string, now time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM `+s.table+`
		WHERE user_id = $1
		  AND refresh_expires_at > $2
	`, userID, now).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, now time.Time) ([]Row, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+rowColumns+`
		FROM `+s.table+`
		WHERE user_id = $1
		  AND refresh_expires_at > $2
		ORDER BY created_at, id
	`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM `+s.table+`
		WHERE refresh_expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nullIfEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
