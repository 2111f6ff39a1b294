package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lalith-99/chatarchive/internal/config"
	"github.com/lalith-99/chatarchive/internal/observ"
)

// env is what every subcommand starts from. It is filled in by the root
// command's PersistentPreRunE.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}

	cmd := &cobra.Command{
		Use:           "chatarchive",
		Short:         "Load exported chat archives into Postgres and manage API apps",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			e.cfg, e.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}

	cmd.AddCommand(newMigrateCmd(e))
	cmd.AddCommand(newIngestCmd(e))
	cmd.AddCommand(newAppsCmd(e))
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
