package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/app"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/config"
)

var (
	purgeNamespace string
	purgeIndex     string
	purgeYes       bool
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every vector in a namespace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireIndex(); err != nil {
			return err
		}
		name := purgeIndex
		if name == "" {
			name = cfg.VectorIndex.Name
		}
		if !purgeYes {
			return fmt.Errorf("refusing to delete %s/%s without --yes", name, purgeNamespace)
		}

		client := app.NewIndexClient(cfg, name, logger)
		if err := client.DeleteNamespace(cmd.Context(), purgeNamespace); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted all vectors from %s/%s\n", name, purgeNamespace)
		return nil
	},
}

func init() {
	purgeCmd.Flags().StringVar(&purgeNamespace, "namespace", config.DefaultNamespace, "namespace to clear")
	purgeCmd.Flags().StringVar(&purgeIndex, "index", "", "target index (default: vector_index.name)")
	purgeCmd.Flags().BoolVar(&purgeYes, "yes", false, "confirm deletion")
}
