package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"purchasedesk/internal/images"
	"purchasedesk/internal/storage"
	"purchasedesk/internal/store"

	"github.com/urfave/cli/v2"
)

var reconcileCommand = &cli.Command{
	Name:  "reconcile",
	Usage: "Compare image rows with bucket objects and report orphans",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "request",
			Usage: "Limit the sweep to one request id",
		},
		&cli.BoolFlag{
			Name:  "delete-orphans",
			Usage: "Delete objects that have no image row",
		},
		&cli.DurationFlag{
			Name:  "min-age",
			Usage: "Leave orphans younger than this alone, uploads in flight write the object before the row",
			Value: images.DefaultOrphanMinAge,
		},
	},
	Action: func(c *cli.Context) error {
		ctx := context.Background()

		config, logger, pool, err := setup(ctx, c)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := requireBucket(c, config); err != nil {
			return err
		}

		minAge := c.Duration("min-age")
		if minAge < 0 {
			return fmt.Errorf("min-age must not be negative")
		}

		publicBaseURL, err := storage.PublicBaseURL(config)
		if err != nil {
			return err
		}

		s3Client, err := storage.NewS3Client(ctx, config)
		if err != nil {
			return err
		}

		reconciler := images.NewReconciler(
			storage.NewS3Storage(s3Client, config.S3Bucket, publicBaseURL),
			store.NewImageRepository(pool),
			store.NewRequestRepository(pool),
			minAge,
			logger,
		)

		report, err := reconciler.Run(ctx, c.String("request"), c.Bool("delete-orphans"))
		if err != nil {
			return fmt.Errorf("failed to reconcile images: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}
