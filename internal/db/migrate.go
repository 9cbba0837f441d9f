package db

import (
	"context"
	"fmt"

	"purchasedesk/internal/db/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// DefaultSchema holds every table of the service. The migrations refer to it
// by name, so a different DATABASE_SCHEMA only changes the search_path.
const DefaultSchema = "purchasedesk"

// Migrate runs goose against the embedded migrations. direction is one of
// "up", "down" or "status".
func Migrate(ctx context.Context, pool *pgxpool.Pool, direction string) error {
	_, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{DefaultSchema}.Sanitize()))
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	goose.SetBaseFS(migrations.FS)
	goose.SetTableName(DefaultSchema + ".goose_db_version")
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	switch direction {
	case "up":
		err = goose.UpContext(ctx, sqlDB, ".")
	case "down":
		err = goose.DownContext(ctx, sqlDB, ".")
	case "status":
		err = goose.StatusContext(ctx, sqlDB, ".")
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}

	return nil
}
