package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/l10nledger/ledger/pkg/apperrors"
	"github.com/l10nledger/ledger/pkg/metrics"
	"github.com/l10nledger/ledger/pkg/models"
	"github.com/l10nledger/ledger/pkg/repositories"
	"github.com/l10nledger/ledger/pkg/selection"
)

// PairSelectorService answers which string pairs need a suggestion next.
// It reads the latest indexes as last refreshed and never refreshes them.
type PairSelectorService interface {
	// PickPairs returns up to params.Limit pairs covered by fewer than
	// params.MaxSuggestions latest suggestions from params.ModelID, least
	// covered and oldest first.
	PickPairs(ctx context.Context, params selection.Params) ([]*models.PairCandidate, error)

	// PickContext returns the latest versions of the pair's string in the
	// other languages, skipping bodies equal to the source or target.
	PickContext(ctx context.Context, pair *models.PairCandidate) ([]*models.TranslationVersion, error)
}

// PairSelectorServiceDeps contains dependencies for PairSelectorService.
type PairSelectorServiceDeps struct {
	Translations       repositories.TranslationRepository
	LatestTranslations repositories.LatestTranslationIndex
	LatestSuggestions  repositories.LatestSuggestionIndex
	Logger             *zap.Logger
}

type pairSelectorService struct {
	translations       repositories.TranslationRepository
	latestTranslations repositories.LatestTranslationIndex
	latestSuggestions  repositories.LatestSuggestionIndex
	logger             *zap.Logger
}

// NewPairSelectorService creates a new PairSelectorService.
func NewPairSelectorService(deps *PairSelectorServiceDeps) PairSelectorService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &pairSelectorService{
		translations:       deps.Translations,
		latestTranslations: deps.LatestTranslations,
		latestSuggestions:  deps.LatestSuggestions,
		logger:             logger.Named("pair-selector"),
	}
}

var _ PairSelectorService = (*pairSelectorService)(nil)

func (s *pairSelectorService) PickPairs(ctx context.Context, params selection.Params) ([]*models.PairCandidate, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()

	candidates, err := s.latestTranslations.ListCandidatePairs(ctx, params.SourceLang, params.TargetLang)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate pairs: %w", err)
	}

	counts, err := s.latestSuggestions.CountByPair(ctx, params.ModelID)
	if err != nil {
		return nil, fmt.Errorf("failed to count suggestions: %w", err)
	}

	pairs := selection.Rank(candidates, counts, params.MaxSuggestions, params.Limit)
	metrics.PairsSelected.Observe(float64(len(pairs)))

	s.logger.Debug("Picked pairs",
		zap.String("source_lang", params.SourceLang),
		zap.String("target_lang", params.TargetLang),
		zap.String("model_id", params.ModelID),
		zap.Int("candidates", len(candidates)),
		zap.Int("picked", len(pairs)),
		zap.Duration("elapsed", time.Since(started)))

	return pairs, nil
}

func (s *pairSelectorService) PickContext(ctx context.Context, pair *models.PairCandidate) ([]*models.TranslationVersion, error) {
	if pair == nil {
		return nil, fmt.Errorf("%w: pair is required", apperrors.ErrInvalidInput)
	}

	source, err := s.translations.GetByID(ctx, pair.SourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get source version: %w", err)
	}
	target, err := s.translations.GetByID(ctx, pair.TargetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get target version: %w", err)
	}
	if source == nil || target == nil {
		return nil, fmt.Errorf("%w: pair (%d, %d)", apperrors.ErrNotFound, pair.SourceID, pair.TargetID)
	}

	siblings, err := s.latestTranslations.ListByString(ctx, pair.StringFile, pair.StringKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest versions: %w", err)
	}

	return selection.ContextStrings(siblings, pair, source.LangCode, target.LangCode), nil
}
