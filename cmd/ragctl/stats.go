package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/app"
)

var statsIndex string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector index statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireIndex(); err != nil {
			return err
		}
		name := statsIndex
		if name == "" {
			name = cfg.VectorIndex.Name
		}

		stats, err := app.NewIndexClient(cfg, name, logger).DescribeIndexStats(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Index:     %s\n", name)
		fmt.Fprintf(out, "Dimension: %d\n", stats.Dimension)
		fmt.Fprintf(out, "Vectors:   %d\n", stats.TotalVectorCount)
		fmt.Fprintf(out, "Fullness:  %.4f\n", stats.IndexFullness)

		namespaces := make([]string, 0, len(stats.Namespaces))
		for ns := range stats.Namespaces {
			namespaces = append(namespaces, ns)
		}
		sort.Strings(namespaces)
		for _, ns := range namespaces {
			label := ns
			if label == "" {
				label = "(default)"
			}
			fmt.Fprintf(out, "  %-24s %d\n", label, stats.Namespaces[ns].VectorCount)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsIndex, "index", "", "index to describe (default: vector_index.name)")
}
