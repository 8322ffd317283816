package app

import (
	"context"
	"fmt"
	"time"

	"gatehouse/cmd/internal/db/migrate"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewDBPool builds a pgxpool from cfg and validates connectivity.
// With cfg.DBAutoMigrate set it applies the embedded migrations first.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DBAutoMigrate {
		if err := migrate.Run(cfg.DatabaseURL, migrate.Up); err != nil {
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}

	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := PingDB(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PingDB checks connectivity within timeout.
func PingDB(parent context.Context, db Pinger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return db.Ping(ctx)
}
