package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "purchasedesk",
		Usage: "Back office for used vehicle purchase requests",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-prefix",
				Aliases: []string{"p"},
				Usage:   "Environment variable prefix",
				Value:   "APP",
			},
		},
		Commands: []*cli.Command{
			serveCommand,
			migrateCommand,
			seedCommand,
			reconcileCommand,
			inspectCommand,
			nanoidCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("application failed")
	}
}
