package main

import (
	"context"
	"fmt"

	"purchasedesk/internal/db"
	"purchasedesk/pkg/types"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func loadConfig(c *cli.Context) (*types.Config, error) {
	config := new(types.Config)
	if err := envconfig.Process(c.String("env-prefix"), config); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}

	if config.DatabaseURL == "" {
		return nil, fmt.Errorf("set %s_DATABASE_URL", c.String("env-prefix"))
	}

	return config, nil
}

// requireBucket is checked only by the commands that talk to S3.
func requireBucket(c *cli.Context, config *types.Config) error {
	if config.S3Bucket == "" {
		return fmt.Errorf("set %s_S3_BUCKET", c.String("env-prefix"))
	}
	return nil
}

func newLogger(config *types.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		logger.WithError(err).WithField("log_level", config.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

// setup loads config, builds the logger and connects to the database.
func setup(ctx context.Context, c *cli.Context) (*types.Config, *logrus.Logger, *pgxpool.Pool, error) {
	config, err := loadConfig(c)
	if err != nil {
		return nil, nil, nil, err
	}

	logger := newLogger(config)

	pool, err := db.Connect(ctx, config)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return config, logger, pool, nil
}
