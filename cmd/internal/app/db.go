package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gymleague/cmd/identity/local"
	"gymleague/cmd/internal/pgstore"
	"gymleague/cmd/internal/profile"
)

// NewDBPool builds a pgxpool with sane defaults and validates connectivity.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
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

	if err := pgstore.Ping(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// Migrate creates schema and applies the profile DDL, plus the local
// provider's tables when withLocal is set. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool, schema string, withLocal bool) error {
	schema, err := pgstore.ValidSchema(schema)
	if err != nil {
		return err
	}

	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + pgx.Identifier{schema}.Sanitize(),
		profile.Schema(schema),
	}
	if withLocal {
		stmts = append(stmts, local.Schema(schema))
	}

	for i, sql := range stmts {
		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("app: migrate step %d: %w", i, err)
		}
	}
	return nil
}
