package main

import (
	"fmt"
	"log"
	"os"

	"shop-svc/config"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "shop-svc",
		Usage: "storefront API with order and payment reconciliation",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			createAdminCommand(),
			seedProductsCommand(),
			clearProductsCommand(),
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// bootstrap loads configuration and builds the process logger. Callers own
// logger.Sync.
func bootstrap() (*config.Config, *zap.Logger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Sync()
		return nil, nil, err
	}
	return cfg, logger, nil
}
