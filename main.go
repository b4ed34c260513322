package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/l10nledger/ledger/pkg/config"
	"github.com/l10nledger/ledger/pkg/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	configPath string

	// set by the root PersistentPreRunE for every subcommand
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Append-only ledger of localized strings and model suggestions",
	Long: `ledger stores every observed version of every localized string, records
model suggestions against pinned (source, target) versions, and answers which
pairs still need a suggestion from a given model.

Examples:
  ledger migrate
  ledger sync --folder ./Localization
  ledger refresh --every 5m --metrics-addr :9090
  ledger pick --target fr --model gpt-4o-mini --max-suggestions 2 --limit 20`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath, Version)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Log)
		if err != nil {
			return err
		}
		logger.Debug("Configuration loaded",
			zap.String("version", cfg.Version),
			zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath,
		"Path to the YAML config file (missing file means environment only)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
