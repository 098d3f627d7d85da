// Package db provides PostgreSQL-backed repositories for the notification
// job. All repositories accept a DBTX so they work against a *pgxpool.Pool or
// inside a pgx.Tx.
package db

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pantrynotify/internal/config"
	"pantrynotify/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool builds a connection pool from config and verifies it with a ping.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "invalid DATABASE_URL", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "pantrynotify"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create connection pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, types.NewAppError(types.ErrCodeInternalDB, "database ping failed", err)
	}
	return pool, nil
}

//go:embed schema.sql
var operationalSchema string

// EnsureOperationalSchema creates the job_locks and job_history tables owned
// by this service. The application tables are provisioned elsewhere.
func EnsureOperationalSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, operationalSchema); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply operational schema", err)
	}
	return nil
}
