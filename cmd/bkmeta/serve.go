package main

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/bkmeta/internal/app"
	"github.com/MrSnakeDoc/bkmeta/internal/config"
	"github.com/MrSnakeDoc/bkmeta/internal/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background schedulers",
		Long:  `Load the collection, start the bookmark reloader, cloud syncer and storage compactor when configured, and serve the API until SIGINT or SIGTERM.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
			defer func() { _ = loggerClient.Sync() }()

			a, err := app.New(cfg, loggerClient)
			if err != nil {
				return err
			}
			return a.Run()
		},
	}
}
