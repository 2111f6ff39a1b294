package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lalith-99/chatarchive/internal/auth"
	"github.com/lalith-99/chatarchive/internal/db"
	"github.com/lalith-99/chatarchive/internal/repository/postgres"
)

func newAppsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "Manage apps allowed to call the read API",
	}
	cmd.AddCommand(newAppsCreateCmd(e))
	return cmd
}

type appsCreateOptions struct {
	Name        string
	Description string
}

func newAppsCreateCmd(e *env) *cobra.Command {
	var opts appsCreateOptions

	cmd := &cobra.Command{
		Use:   "create --name <name> [--description <text>]",
		Short: "Register an app and print its credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(opts.Name) == "" {
				return errors.New("--name is required")
			}

			secret, err := auth.NewSecret()
			if err != nil {
				return err
			}
			hash, err := auth.HashSecret(secret)
			if err != nil {
				return err
			}

			database, err := db.New(cmd.Context(), e.cfg.DatabaseURL, cliMaxConns, e.logger)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer database.Close()

			var description *string
			if opts.Description != "" {
				description = &opts.Description
			}
			app, err := postgres.NewAppStore(database.Pool()).Create(cmd.Context(), opts.Name, description, hash)
			if err != nil {
				return err
			}
			e.logger.Info("app registered", zap.String("app_id", app.ID.String()), zap.String("name", app.Name))

			// The secret is not stored; this is the only time it is shown.
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "app_id: %s\n", app.ID)
			fmt.Fprintf(out, "secret: %s\n", secret)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "app name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "what the app uses the archive for")
	return cmd
}
