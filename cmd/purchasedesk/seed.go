package main

import (
	"context"
	"fmt"

	"purchasedesk/internal/seed"
	"purchasedesk/internal/store"

	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Seed the database with demo purchase requests",
	Action: func(c *cli.Context) error {
		ctx := context.Background()

		_, logger, pool, err := setup(ctx, c)
		if err != nil {
			return err
		}
		defer pool.Close()

		logger.Info("Seeding requests...")
		if err := seed.SeedRequests(ctx, store.NewRequestRepository(pool)); err != nil {
			return fmt.Errorf("failed to seed requests: %w", err)
		}

		logger.WithField("count", len(seed.DemoRequests())).Info("Requests seeded successfully")

		return nil
	},
}
