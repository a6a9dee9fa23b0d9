package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bkmeta",
		Short: "Bookmark metadata companion service",
		Long: `bkmeta keeps tags, favicons and click counts for browser bookmarks.

Every change goes through a single ordered mutation queue and is persisted
to the configured storage backend (file, memory, redis, badger, postgres).
Tagged bookmarks can be synced with a cloud snapshot keyed by url hash.

Configuration is read from BKMETA_* environment variables.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newVersionCmd())
	return root
}
