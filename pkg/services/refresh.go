package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/l10nledger/ledger/pkg/metrics"
	"github.com/l10nledger/ledger/pkg/repositories"
)

// Index names used for refresh coalescing, logging and metrics.
const (
	IndexLatestTranslations = "latest_translations"
	IndexLatestSuggestions  = "latest_suggestions"
	refreshAllKey           = "all"
)

// RefreshService recomputes the latest indexes. Refreshes are explicit or
// scheduled, never a side effect of a read.
type RefreshService interface {
	// RefreshTranslations recomputes the latest translation index.
	RefreshTranslations(ctx context.Context) error

	// RefreshSuggestions recomputes the latest suggestion index against the
	// latest translation index as it currently stands.
	RefreshSuggestions(ctx context.Context) error

	// RefreshAll refreshes translations, then suggestions.
	RefreshAll(ctx context.Context) error

	// Run calls RefreshAll immediately and then every interval until ctx is done.
	Run(ctx context.Context, interval time.Duration) error
}

// RefreshServiceDeps contains dependencies for RefreshService.
type RefreshServiceDeps struct {
	LatestTranslations repositories.LatestTranslationIndex
	LatestSuggestions  repositories.LatestSuggestionIndex
	Timeout            time.Duration // Optional: zero means no bound
	Logger             *zap.Logger
}

type refreshService struct {
	latestTranslations repositories.LatestTranslationIndex
	latestSuggestions  repositories.LatestSuggestionIndex
	timeout            time.Duration
	group              singleflight.Group
	logger             *zap.Logger

	mu sync.Mutex
	// rounds holds, per key, the number of the next round that has not
	// started yet. Callers only join that round.
	rounds map[string]uint64
}

// NewRefreshService creates a new RefreshService.
func NewRefreshService(deps *RefreshServiceDeps) RefreshService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &refreshService{
		latestTranslations: deps.LatestTranslations,
		latestSuggestions:  deps.LatestSuggestions,
		timeout:            deps.Timeout,
		logger:             logger.Named("refresh"),
		rounds:             make(map[string]uint64),
	}
}

var _ RefreshService = (*refreshService)(nil)

func (s *refreshService) RefreshTranslations(ctx context.Context) error {
	return s.coalesce(ctx, IndexLatestTranslations, func(ctx context.Context) error {
		return s.refreshIndex(ctx, IndexLatestTranslations, s.latestTranslations.Refresh)
	})
}

func (s *refreshService) RefreshSuggestions(ctx context.Context) error {
	return s.coalesce(ctx, IndexLatestSuggestions, func(ctx context.Context) error {
		return s.refreshIndex(ctx, IndexLatestSuggestions, s.latestSuggestions.Refresh)
	})
}

func (s *refreshService) RefreshAll(ctx context.Context) error {
	return s.coalesce(ctx, refreshAllKey, func(ctx context.Context) error {
		if err := s.refreshIndex(ctx, IndexLatestTranslations, s.latestTranslations.Refresh); err != nil {
			return err
		}
		return s.refreshIndex(ctx, IndexLatestSuggestions, s.latestSuggestions.Refresh)
	})
}

// coalesce joins callers of the same key onto one refresh round that has not
// started yet, so every caller observes writes that completed before its call.
// A caller arriving while a round runs triggers the next round instead of
// joining the running one. The shared work is detached from any single
// caller's cancellation; each caller still stops waiting when its own ctx is done.
func (s *refreshService) coalesce(ctx context.Context, key string, fn func(context.Context) error) error {
	s.mu.Lock()
	round := s.rounds[key]
	s.mu.Unlock()

	ch := s.group.DoChan(fmt.Sprintf("%s#%d", key, round), func() (interface{}, error) {
		s.mu.Lock()
		if s.rounds[key] == round {
			s.rounds[key] = round + 1
		}
		s.mu.Unlock()

		workCtx := context.WithoutCancel(ctx)
		if s.timeout > 0 {
			var cancel context.CancelFunc
			workCtx, cancel = context.WithTimeout(workCtx, s.timeout)
			defer cancel()
		}
		return nil, fn(workCtx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("Joined pending refresh", zap.String("key", key), zap.Uint64("round", round))
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *refreshService) refreshIndex(ctx context.Context, index string, refresh func(context.Context) error) error {
	started := time.Now()
	err := refresh(ctx)
	metrics.ObserveRefresh(index, started, err)

	if err != nil {
		s.logger.Error("Failed to refresh index",
			zap.String("index", index),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err))
		return fmt.Errorf("failed to refresh %s: %w", index, err)
	}

	s.logger.Info("Refreshed index",
		zap.String("index", index),
		zap.Duration("elapsed", time.Since(started)))
	return nil
}

func (s *refreshService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", interval)
	}

	s.logger.Info("Starting scheduled refresh", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.RefreshAll(ctx); err != nil && ctx.Err() == nil {
			// the next tick retries; a failed refresh leaves the previous state readable
			s.logger.Warn("Scheduled refresh failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Stopping scheduled refresh")
			return nil
		case <-ticker.C:
		}
	}
}
