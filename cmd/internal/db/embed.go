// Package db holds the embedded schema migrations for the gatehouse schema.
package db

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// MigrationFS embeds SQL migration files from cmd/internal/db/migrations.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS

// Schema is the Postgres schema the migrations create.
const Schema = "gatehouse"

// UpSQL concatenates every *.up.sql migration in order with the schema
// qualifier rewritten to schema. Integration tests use it to build an
// isolated copy of the tables.
func UpSQL(schema string) (string, error) {
	entries, err := fs.Glob(MigrationFS, "migrations/*.up.sql")
	if err != nil {
		return "", err
	}
	sort.Strings(entries)

	quoted := pgx.Identifier{schema}.Sanitize()
	var b strings.Builder
	for _, name := range entries {
		raw, err := fs.ReadFile(MigrationFS, name)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		sql := strings.ReplaceAll(string(raw), Schema+".", quoted+".")
		sql = strings.ReplaceAll(sql, "SCHEMA IF NOT EXISTS "+Schema, "SCHEMA IF NOT EXISTS "+quoted)
		b.WriteString(sql)
		b.WriteString("\n")
	}
	return b.String(), nil
}
