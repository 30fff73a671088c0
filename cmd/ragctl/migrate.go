package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/repository/chatlog"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the chat log table if it does not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Audit.DSN == "" {
			return errors.New("missing configuration: audit.dsn")
		}

		db, err := chatlog.Open(cmd.Context(), cfg.Audit.DSN)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := chatlog.New(db, cfg.Audit.Table, logger).EnsureSchema(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Table %s is ready\n", cfg.Audit.Table)
		return nil
	},
}
