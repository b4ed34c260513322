package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/l10nledger/ledger/pkg/database"
	"github.com/l10nledger/ledger/pkg/models"
)

// SuggestionRepository is the append-only store of model suggestions.
// Corrections are new suggestion events, never updates.
type SuggestionRepository interface {
	// Append inserts s and fills its ID (when unset) and AddedAt.
	// Unknown source or target versions fail with apperrors.ErrUnknownReference;
	// a second event with the same (source, target, model, added_at) fails with apperrors.ErrConflict.
	Append(ctx context.Context, s *models.Suggestion) error

	// ListByPair returns every suggestion event for a pinned pair and model, oldest first.
	ListByPair(ctx context.Context, sourceID, targetID int64, modelID string) ([]*models.Suggestion, error)
}

type suggestionRepository struct {
	db *database.DB
}

// NewSuggestionRepository creates a new SuggestionRepository.
func NewSuggestionRepository(db *database.DB) SuggestionRepository {
	return &suggestionRepository{db: db}
}

var _ SuggestionRepository = (*suggestionRepository)(nil)

const suggestionColumns = `id, source_id, target_id, model_id, added_at,
		       suggestion_string_body, suggestion_comment, elapsed,
		       completion_tokens, prompt_tokens, system_fingerprint`

func (r *suggestionRepository) Append(ctx context.Context, s *models.Suggestion) error {
	if err := s.Validate(); err != nil {
		return err
	}

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	var completionTokens, promptTokens *int
	var fingerprint *string
	if s.Usage != nil {
		completionTokens = s.Usage.CompletionTokens
		promptTokens = s.Usage.PromptTokens
		fingerprint = s.Usage.SystemFingerprint
	}

	query := `
		INSERT INTO suggestions (
			id, source_id, target_id, model_id, added_at,
			suggestion_string_body, suggestion_comment, elapsed,
			completion_tokens, prompt_tokens, system_fingerprint
		) VALUES ($1, $2, $3, $4, COALESCE($5::timestamptz, now()), $6, $7, $8, $9, $10, $11)
		RETURNING added_at`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		s.ID,
		s.SourceID,
		s.TargetID,
		s.ModelID,
		nullableTime(s.AddedAt),
		s.SuggestedBody,
		s.Comment,
		durationToInterval(s.Elapsed),
		completionTokens,
		promptTokens,
		fingerprint,
	).Scan(&s.AddedAt)
	if err != nil {
		return fmt.Errorf("failed to append suggestion: %w", classifyError(err))
	}
	s.AddedAt = s.AddedAt.UTC()

	return nil
}

func (r *suggestionRepository) ListByPair(ctx context.Context, sourceID, targetID int64, modelID string) ([]*models.Suggestion, error) {
	query := `
		SELECT ` + suggestionColumns + `
		FROM suggestions
		WHERE source_id = $1 AND target_id = $2 AND model_id = $3
		ORDER BY added_at ASC`

	rows, err := r.db.Querier(ctx).Query(ctx, query, sourceID, targetID, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", classifyError(err))
	}
	defer rows.Close()

	return scanSuggestions(rows)
}

// Helper functions

func scanSuggestion(row pgx.Row) (*models.Suggestion, error) {
	var s models.Suggestion
	var elapsed pgtype.Interval
	var completionTokens, promptTokens *int
	var fingerprint *string

	err := row.Scan(
		&s.ID,
		&s.SourceID,
		&s.TargetID,
		&s.ModelID,
		&s.AddedAt,
		&s.SuggestedBody,
		&s.Comment,
		&elapsed,
		&completionTokens,
		&promptTokens,
		&fingerprint,
	)
	if err != nil {
		return nil, err
	}

	s.AddedAt = s.AddedAt.UTC()
	s.Elapsed = intervalToDuration(elapsed)

	// Usage stays nil when the integration reported nothing.
	if completionTokens != nil || promptTokens != nil || fingerprint != nil {
		s.Usage = &models.Usage{
			CompletionTokens:  completionTokens,
			PromptTokens:      promptTokens,
			SystemFingerprint: fingerprint,
		}
	}

	return &s, nil
}

func scanSuggestions(rows pgx.Rows) ([]*models.Suggestion, error) {
	var suggestions []*models.Suggestion
	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		suggestions = append(suggestions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suggestions: %w", classifyError(err))
	}

	return suggestions, nil
}
