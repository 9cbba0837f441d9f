package main

import (
	"context"
	"fmt"

	"purchasedesk/internal/db"

	"github.com/urfave/cli/v2"
)

var migrateCommand = &cli.Command{
	Name:      "migrate",
	Usage:     "Apply or roll back database migrations",
	ArgsUsage: "[up|down|status]",
	Action: func(c *cli.Context) error {
		direction := "up"
		if c.Args().Present() {
			direction = c.Args().First()
		}

		ctx := context.Background()

		_, logger, pool, err := setup(ctx, c)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool, direction); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		logger.WithField("direction", direction).Info("migrations complete")

		return nil
	},
}
