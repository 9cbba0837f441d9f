package db

import (
	"context"
	"fmt"
	"time"

	"purchasedesk/pkg/types"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// connectTimeout bounds how long Connect waits for the database to accept
// connections.
const connectTimeout = 30 * time.Second

func Connect(ctx context.Context, config *types.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	schema := config.DatabaseSchema
	if schema == "" {
		schema = DefaultSchema
	}

	if _, ok := poolConfig.ConnConfig.RuntimeParams["search_path"]; !ok {
		poolConfig.ConnConfig.RuntimeParams["search_path"] = schema
	}

	poolConfig.MaxConnIdleTime = 15 * time.Minute
	poolConfig.MaxConnLifetime = 45 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = connectTimeout

	err = backoff.Retry(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pool.Ping(pingCtx)
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
