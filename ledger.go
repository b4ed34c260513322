package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/l10nledger/ledger/migrations"
	"github.com/l10nledger/ledger/pkg/database"
	"github.com/l10nledger/ledger/pkg/logging"
	"github.com/l10nledger/ledger/pkg/repositories"
	"github.com/l10nledger/ledger/pkg/retry"
	"github.com/l10nledger/ledger/pkg/services"
)

// ledger is the Postgres-backed set of stores and services a command uses.
type ledger struct {
	db *database.DB

	translations       repositories.TranslationRepository
	suggestions        repositories.SuggestionRepository
	latestTranslations repositories.LatestTranslationIndex
	latestSuggestions  repositories.LatestSuggestionIndex

	refresh  services.RefreshService
	selector services.PairSelectorService
	sync     services.SyncService
}

func connect(ctx context.Context) (*database.DB, error) {
	dbCfg := &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
		MinConnections: cfg.Database.MaxIdleConns,
	}

	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		db, err := database.NewConnection(ctx, dbCfg)
		if err != nil {
			logger.Warn("Database connection attempt failed",
				zap.String("error", logging.SanitizeError(err)))
		}
		return db, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %s", logging.SanitizeError(err))
	}

	if version, err := db.Version(ctx); err == nil {
		logger.Debug("Connected to database", zap.String("server_version", version))
	}
	return db, nil
}

func openLedger(ctx context.Context) (*ledger, error) {
	db, err := connect(ctx)
	if err != nil {
		return nil, err
	}

	l := &ledger{
		db:                 db,
		translations:       repositories.NewTranslationRepository(db),
		suggestions:        repositories.NewSuggestionRepository(db),
		latestTranslations: repositories.NewLatestTranslationIndex(db),
		latestSuggestions:  repositories.NewLatestSuggestionIndex(db),
	}

	l.refresh = services.NewRefreshService(&services.RefreshServiceDeps{
		LatestTranslations: l.latestTranslations,
		LatestSuggestions:  l.latestSuggestions,
		Timeout:            cfg.Refresh.Timeout,
		Logger:             logger,
	})
	l.selector = services.NewPairSelectorService(&services.PairSelectorServiceDeps{
		Translations:       l.translations,
		LatestTranslations: l.latestTranslations,
		LatestSuggestions:  l.latestSuggestions,
		Logger:             logger,
	})
	l.sync = services.NewSyncService(&services.SyncServiceDeps{
		Translations: l.translations,
		Refresher:    l.refresh,
		Concurrency:  cfg.Sync.Concurrency,
		Logger:       logger,
	})
	return l, nil
}

func (l *ledger) Close() {
	l.db.Close()
}

func runMigrations() error {
	sqlDB, err := database.OpenSQL(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, migrations.FS, logger.Named("migrations"))
}
