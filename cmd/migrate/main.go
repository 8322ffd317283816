// Command migrate applies or rolls back the embedded schema migrations.
//
//	GATE_DATABASE_URL=postgres://... migrate -direction up
package main

import (
	"flag"
	"log/slog"
	"os"
	"strings"

	"gatehouse/cmd/internal/db/migrate"
)

func main() {
	dirFlag := flag.String("direction", "up", "migration direction: up or down")
	dsnFlag := flag.String("database-url", "", "Postgres URL (defaults to GATE_DATABASE_URL)")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	dir, err := migrate.ParseDirection(strings.ToLower(strings.TrimSpace(*dirFlag)))
	if err != nil {
		log.Error("migrate.bad_flag", "err", err)
		os.Exit(2)
	}

	dsn := strings.TrimSpace(*dsnFlag)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("GATE_DATABASE_URL"))
	}

	if err := migrate.Run(dsn, dir); err != nil {
		log.Error("migrate.fail", "direction", string(dir), "err", err)
		os.Exit(1)
	}
	log.Info("migrate.done", "direction", string(dir))
}
