package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/l10nledger/ledger/pkg/metrics"
)

var (
	refreshEvery       time.Duration
	refreshMetricsAddr string
	refreshOnly        string
	refreshWatch       bool
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute the latest translation and suggestion indexes",
	Long: `Refreshes the latest translation index, then the latest suggestion index.
With --watch the refresh repeats every refresh.interval until interrupted
(--every sets another interval), optionally exposing Prometheus metrics.

Examples:
  ledger refresh
  ledger refresh --only translations
  ledger refresh --watch
  ledger refresh --every 1m --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runRefreshCommand,
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshWatch, "watch", false, "Repeat every refresh.interval until interrupted")
	refreshCmd.Flags().DurationVar(&refreshEvery, "every", 0, "Repeat on this interval until interrupted (implies --watch)")
	refreshCmd.Flags().StringVar(&refreshMetricsAddr, "metrics-addr", "", "Serve /metrics on this address (default: metrics.addr)")
	refreshCmd.Flags().StringVar(&refreshOnly, "only", "", "Refresh a single index: translations or suggestions")
	rootCmd.AddCommand(refreshCmd)
}

func runRefreshCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	every := refreshEvery
	if every <= 0 && refreshWatch {
		every = cfg.Refresh.Interval
	}

	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	if every <= 0 {
		switch refreshOnly {
		case "":
			return l.refresh.RefreshAll(ctx)
		case "translations":
			return l.refresh.RefreshTranslations(ctx)
		case "suggestions":
			return l.refresh.RefreshSuggestions(ctx)
		default:
			return errors.New("--only must be translations or suggestions")
		}
	}
	if refreshOnly != "" {
		return errors.New("--only cannot be combined with --watch or --every")
	}

	addr := refreshMetricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		srv := startMetricsServer(addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return l.refresh.Run(ctx, every)
}

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
