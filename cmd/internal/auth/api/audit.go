package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Audit actions.
const (
	ActionRegister      = "auth.register"
	ActionLoginSuccess  = "auth.login.success"
	ActionLoginFailed   = "auth.login.failed"
	ActionRefresh       = "auth.refresh.success"
	ActionRefreshFailed = "auth.refresh.failed"
	ActionLogout        = "auth.logout"
	ActionLogoutAll     = "auth.logout_all"
)

// AuditEvent is one row of the audit trail.
type AuditEvent struct {
	Action    string
	UserID    string
	SessionID string
	IP        string
	UserAgent string
	Meta      map[string]any
}

// AuditSink records audit events. Record must not fail the request; sinks log their own errors.
type AuditSink interface {
	Record(ctx context.Context, ev AuditEvent)
}

// AuditExecer is the subset of *pgxpool.Pool the Postgres sink uses.
type AuditExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresAudit writes events to <schema>.audit_log.
type PostgresAudit struct {
	db      AuditExecer
	table   string
	timeout time.Duration
	log     *slog.Logger
}

// NewPostgresAudit returns a sink over db. schema must be a valid identifier.
func NewPostgresAudit(db AuditExecer, schema string, timeout time.Duration, log *slog.Logger) (*PostgresAudit, error) {
	if db == nil {
		return nil, errors.New("authapi: nil audit db")
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = "gatehouse"
	}
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &PostgresAudit{
		db:      db,
		table:   pgx.Identifier{schema, "audit_log"}.Sanitize(),
		timeout: timeout,
		log:     log,
	}, nil
}

func (a *PostgresAudit) Record(ctx context.Context, ev AuditEvent) {
	action := strings.TrimSpace(ev.Action)
	if action == "" {
		return
	}

	var metaVal *string
	if len(ev.Meta) > 0 {
		if b, err := json.Marshal(ev.Meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	// The audit row outlives a cancelled request.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	_, err := a.db.Exec(ctx, `
		INSERT INTO `+a.table+` (
			user_id, session_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, $3, now(), $4::inet, $5, $6::jsonb)
	`, trimOrNil(ev.UserID), trimOrNil(ev.SessionID), action, trimOrNil(ev.IP), trimOrNil(ev.UserAgent), metaVal)
	if err != nil {
		a.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}

// LogAudit writes events to a logger. It backs dev mode.
type LogAudit struct {
	Log *slog.Logger
}

func (a LogAudit) Record(ctx context.Context, ev AuditEvent) {
	log := a.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "auth.audit",
		"action", ev.Action,
		"user_id", ev.UserID,
		"session_id", ev.SessionID,
		"ip", ev.IP,
	)
}

func trimOrNil(s string) *string {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return &v
}
