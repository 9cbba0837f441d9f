package main

import (
	"context"
	"fmt"

	"purchasedesk/internal/management"
	"purchasedesk/internal/offers"
	"purchasedesk/internal/status"
	"purchasedesk/internal/store"
	"purchasedesk/pkg/types"

	"github.com/k0kubun/pp/v3"
	"github.com/urfave/cli/v2"
)

var inspectCommand = &cli.Command{
	Name:      "inspect",
	Usage:     "Print everything stored for a purchase request",
	ArgsUsage: "<request-id>",
	Action: func(c *cli.Context) error {
		if !c.Args().Present() {
			return fmt.Errorf("a request id is required")
		}
		requestID := c.Args().First()

		ctx := context.Background()

		_, logger, pool, err := setup(ctx, c)
		if err != nil {
			return err
		}
		defer pool.Close()

		requestRepo := store.NewRequestRepository(pool)
		resolver := management.NewResolver(requestRepo, store.NewManagementRepository(pool), logger)
		engine := status.NewEngine(requestRepo, store.NewStatusRepository(pool), resolver, logger)
		ledger := offers.NewLedger(requestRepo, store.NewOfferRepository(pool), logger)

		overview, err := engine.Overview(ctx, requestID)
		if err != nil {
			return err
		}

		record, err := resolver.Resolve(ctx, requestID)
		if err != nil {
			return err
		}

		offerList, err := ledger.ListByRequest(ctx, requestID)
		if err != nil {
			return err
		}

		imageList, err := store.NewImageRepository(pool).ImagesByRequestID(ctx, requestID)
		if err != nil {
			return err
		}

		printer := pp.New()
		printer.SetColoringEnabled(c.Bool("color"))
		printer.Println(types.RequestDetail{
			Request:       overview.Request,
			CurrentStatus: overview.Current,
			StatusHistory: overview.History,
			Management:    record,
			Offers:        offerList,
		})
		printer.Println(imageList)

		return nil
	},
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "color",
			Usage: "Colorize output",
			Value: true,
		},
	},
}
