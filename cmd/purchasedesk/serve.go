package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"purchasedesk/internal/images"
	"purchasedesk/internal/management"
	"purchasedesk/internal/offers"
	"purchasedesk/internal/server"
	"purchasedesk/internal/status"
	"purchasedesk/internal/storage"
	"purchasedesk/internal/store"

	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Start the HTTP server",
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, logger, pool, err := setup(ctx, cCtx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := requireBucket(cCtx, config); err != nil {
		return err
	}

	s3Client, err := storage.NewS3Client(ctx, config)
	if err != nil {
		return err
	}
	publicBaseURL, err := storage.PublicBaseURL(config)
	if err != nil {
		return err
	}
	blobs := storage.NewS3Storage(s3Client, config.S3Bucket, publicBaseURL)

	requestRepo := store.NewRequestRepository(pool)
	statusRepo := store.NewStatusRepository(pool)
	managementRepo := store.NewManagementRepository(pool)
	imageRepo := store.NewImageRepository(pool)
	offerRepo := store.NewOfferRepository(pool)

	resolver := management.NewResolver(requestRepo, managementRepo, logger)
	engine := status.NewEngine(requestRepo, statusRepo, resolver, logger)
	assets := images.NewAssetStore(requestRepo, imageRepo, blobs, logger)
	ledger := offers.NewLedger(requestRepo, offerRepo, logger)

	srv := server.New(config, logger, pool, engine, resolver, assets, ledger)

	go func() {
		logger.WithField("port", config.ServerPort).Infof("server starting http://localhost:%d", config.ServerPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(shutdownCtx)
}
