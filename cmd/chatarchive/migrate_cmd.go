package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lalith-99/chatarchive/internal/db"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the archive schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := db.New(cmd.Context(), e.cfg.DatabaseURL, cliMaxConns, e.logger)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer database.Close()

			return database.Migrate(cmd.Context())
		},
	}
}
