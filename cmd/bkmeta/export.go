package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/bkmeta/internal/app"
	"github.com/MrSnakeDoc/bkmeta/internal/cloud"
	"github.com/MrSnakeDoc/bkmeta/internal/config"
	"github.com/MrSnakeDoc/bkmeta/internal/domain"
	"github.com/MrSnakeDoc/bkmeta/internal/logger"
	"github.com/MrSnakeDoc/bkmeta/internal/store"
	"github.com/MrSnakeDoc/bkmeta/internal/utils"
)

func newExportCmd() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the cloud export of the stored collection as JSON",
		Long:  `Open the storage backend, load the persisted collection and print its tagged bookmarks keyed by url hash. The service does not need to be running.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if dsn != "" {
				cfg.StoreDSN = dsn
			}
			loggerClient := logger.New("error", false)
			return exportCollection(cmd, cfg, loggerClient, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "storage DSN (defaults to BKMETA_STORE_DSN)")
	return cmd
}

func exportCollection(cmd *cobra.Command, cfg *config.Config, loggerClient logger.Logger, out io.Writer) error {
	backend, err := store.Open(cfg.StoreDSN, store.Options{
		Logger: loggerClient,
		Redis:  app.RetryPolicy(cfg),
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer utils.CloseLogged(backend, "storage", loggerClient)

	c, err := backend.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if c == nil {
		c = domain.NewCollection()
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(cloud.Project(c.Normalize()))
}
