package repositories

import (
	"context"
	"fmt"

	"github.com/l10nledger/ledger/pkg/database"
	"github.com/l10nledger/ledger/pkg/models"
)

// LatestSuggestionIndex is the derived view of suggestions whose source and
// target are both still the latest version of their string and whose bodies
// still differ.
type LatestSuggestionIndex interface {
	// Refresh recomputes the index against the current latest-translation index.
	// Refresh that index first; running against a stale one yields a stale result.
	Refresh(ctx context.Context) error

	// CountByPair counts the materialized suggestions of one model per version pair.
	CountByPair(ctx context.Context, modelID string) (map[models.PairKey]int, error)

	// ListByModel returns the materialized suggestions of one model, oldest first.
	ListByModel(ctx context.Context, modelID string) ([]*models.Suggestion, error)
}

type latestSuggestionIndex struct {
	db *database.DB
}

// NewLatestSuggestionIndex creates a LatestSuggestionIndex backed by the
// latest_suggestions materialized view.
func NewLatestSuggestionIndex(db *database.DB) LatestSuggestionIndex {
	return &latestSuggestionIndex{db: db}
}

var _ LatestSuggestionIndex = (*latestSuggestionIndex)(nil)

func (r *latestSuggestionIndex) Refresh(ctx context.Context) error {
	return refreshView(ctx, r.db, "latest_suggestions")
}

func (r *latestSuggestionIndex) CountByPair(ctx context.Context, modelID string) (map[models.PairKey]int, error) {
	query := `
		SELECT source_id, target_id, COUNT(*)
		FROM latest_suggestions
		WHERE model_id = $1
		GROUP BY source_id, target_id`

	rows, err := r.db.Querier(ctx).Query(ctx, query, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to count suggestions: %w", classifyError(err))
	}
	defer rows.Close()

	counts := make(map[models.PairKey]int)
	for rows.Next() {
		var key models.PairKey
		var count int
		if err := rows.Scan(&key.SourceID, &key.TargetID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[key] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating counts: %w", classifyError(err))
	}

	return counts, nil
}

// ListByModel orders rows as models.Suggestion.ListedBefore does.
func (r *latestSuggestionIndex) ListByModel(ctx context.Context, modelID string) ([]*models.Suggestion, error) {
	query := `
		SELECT ` + suggestionColumns + `
		FROM latest_suggestions
		WHERE model_id = $1
		ORDER BY added_at ASC, source_id ASC, target_id ASC`

	rows, err := r.db.Querier(ctx).Query(ctx, query, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest suggestions: %w", classifyError(err))
	}
	defer rows.Close()

	return scanSuggestions(rows)
}
