// Command ragctl maintains the vector index and chat log, and runs one-off questions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/config"
	logpkg "github.com/hareshsuppiah/sport-science-ai-chat/internal/logger"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/version"
)

var (
	envName string
	verbose bool

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Operate the sport science research chat",
	Long: `ragctl indexes research papers into the vector index, inspects and purges it,
prepares the chat log table and asks one-off questions through the same pipeline
the API uses.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}
		if envName == "" {
			envName = config.GetEnv()
		}

		var err error
		cfg, err = config.Load(envName)
		if err != nil {
			return err
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		} else if level == "" || level == "debug" {
			level = "warn"
		}
		logger, err = logpkg.NewLogger(envName, level)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "config environment (default: $ENV or local)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// requireIndex fails early when the vector index cannot be reached at all.
func requireIndex() error {
	var missing []string
	if cfg.VectorIndex.APIKey == "" {
		missing = append(missing, "vector_index.api_key")
	}
	if cfg.VectorIndex.Name == "" {
		missing = append(missing, "vector_index.name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %v", missing)
	}
	return nil
}
