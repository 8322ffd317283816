package authapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresAudit_Record(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a, err := NewPostgresAudit(mock, "", time.Second, nil)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO "gatehouse"."audit_log"`).
		WithArgs(ptrTo("u1"), ptrTo("s1"), ActionLoginSuccess, ptrTo("192.0.2.1"), (*string)(nil), ptrTo(`{"refresh_count":0}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	a.Record(context.Background(), AuditEvent{
		Action: ActionLoginSuccess, UserID: "u1", SessionID: "s1", IP: "192.0.2.1",
		Meta: map[string]any{"refresh_count": 0},
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAudit_ErrorIsSwallowed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a, err := NewPostgresAudit(mock, "gatehouse", time.Second, nil)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO "gatehouse"."audit_log"`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), ActionLogout, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("relation does not exist"))

	a.Record(context.Background(), AuditEvent{Action: ActionLogout, UserID: "u1"})
	assert.NoError(t, mock.ExpectationsWereMet())

	// Empty actions never reach the database.
	a.Record(context.Background(), AuditEvent{})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresAudit_NilDB(t *testing.T) {
	_, err := NewPostgresAudit(nil, "", 0, nil)
	assert.Error(t, err)
}

func ptrTo(s string) *string { return &s }
