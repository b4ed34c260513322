package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/l10nledger/ledger/pkg/database"
	"github.com/l10nledger/ledger/pkg/models"
)

// LatestTranslationIndex is the derived view holding the latest version of every
// (string_file, string_key, lang_code). Reads may lag the translation store
// until Refresh completes.
type LatestTranslationIndex interface {
	// Refresh recomputes the whole index. It either completes and becomes
	// visible at once, or fails leaving the previous contents in place.
	Refresh(ctx context.Context) error

	// Lookup returns the materialized latest version, or nil if the string has none.
	Lookup(ctx context.Context, stringFile, stringKey, langCode string) (*models.TranslationVersion, error)

	// ListByString returns the latest version of one string in every language.
	ListByString(ctx context.Context, stringFile, stringKey string) ([]*models.TranslationVersion, error)

	// ListCandidatePairs returns the (source, target) pairs whose latest bodies differ.
	// SuggestionsCount is left at zero.
	ListCandidatePairs(ctx context.Context, sourceLang, targetLang string) ([]*models.PairCandidate, error)

	// Count returns the number of materialized rows.
	Count(ctx context.Context) (int, error)
}

type latestTranslationIndex struct {
	db *database.DB
}

// NewLatestTranslationIndex creates a LatestTranslationIndex backed by the
// latest_translations materialized view.
func NewLatestTranslationIndex(db *database.DB) LatestTranslationIndex {
	return &latestTranslationIndex{db: db}
}

var _ LatestTranslationIndex = (*latestTranslationIndex)(nil)

func (r *latestTranslationIndex) Refresh(ctx context.Context) error {
	return refreshView(ctx, r.db, "latest_translations")
}

func (r *latestTranslationIndex) Lookup(ctx context.Context, stringFile, stringKey, langCode string) (*models.TranslationVersion, error) {
	query := `
		SELECT ` + translationColumns + `
		FROM latest_translations
		WHERE string_file = $1 AND string_key = $2 AND lang_code = $3`

	v, err := scanTranslation(r.db.Querier(ctx).QueryRow(ctx, query, stringFile, stringKey, langCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up latest translation: %w", classifyError(err))
	}
	return v, nil
}

func (r *latestTranslationIndex) ListByString(ctx context.Context, stringFile, stringKey string) ([]*models.TranslationVersion, error) {
	query := `
		SELECT ` + translationColumns + `
		FROM latest_translations
		WHERE string_file = $1 AND string_key = $2
		ORDER BY lang_code`

	rows, err := r.db.Querier(ctx).Query(ctx, query, stringFile, stringKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest translations: %w", classifyError(err))
	}
	defer rows.Close()

	return scanTranslations(rows)
}

func (r *latestTranslationIndex) ListCandidatePairs(ctx context.Context, sourceLang, targetLang string) ([]*models.PairCandidate, error) {
	query := `
		SELECT lt_target.string_file, lt_target.string_key,
		       lt_source.id, lt_target.id,
		       lt_source.string_body, lt_target.string_body,
		       lt_source.added_at, lt_target.added_at
		FROM latest_translations lt_target
		JOIN latest_translations lt_source
		  ON lt_source.string_file = lt_target.string_file
		 AND lt_source.string_key = lt_target.string_key
		WHERE lt_target.lang_code = $2
		  AND lt_source.lang_code = $1
		  AND lt_source.string_body <> lt_target.string_body`

	rows, err := r.db.Querier(ctx).Query(ctx, query, sourceLang, targetLang)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate pairs: %w", classifyError(err))
	}
	defer rows.Close()

	var pairs []*models.PairCandidate
	for rows.Next() {
		var p models.PairCandidate
		err := rows.Scan(
			&p.StringFile,
			&p.StringKey,
			&p.SourceID,
			&p.TargetID,
			&p.SourceBody,
			&p.TargetBody,
			&p.SourceAddedAt,
			&p.TargetAddedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate pair: %w", err)
		}
		p.SourceAddedAt = p.SourceAddedAt.UTC()
		p.TargetAddedAt = p.TargetAddedAt.UTC()
		pairs = append(pairs, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidate pairs: %w", classifyError(err))
	}

	return pairs, nil
}

func (r *latestTranslationIndex) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.Querier(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM latest_translations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count latest translations: %w", classifyError(err))
	}
	return count, nil
}

// refreshView recomputes a materialized view. Refreshes of the same view are
// serialized across processes with a transaction-scoped advisory lock; the
// concurrent refresh keeps the previous contents readable until commit.
func refreshView(ctx context.Context, db *database.DB, view string) error {
	err := db.InTx(ctx, func(ctx context.Context) error {
		q := db.Querier(ctx)
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1)::bigint)`, "refresh:"+view); err != nil {
			return fmt.Errorf("failed to acquire refresh lock: %w", err)
		}
		statement := fmt.Sprintf("REFRESH MATERIALIZED VIEW CONCURRENTLY %s", pgx.Identifier{view}.Sanitize())
		if _, err := q.Exec(ctx, statement); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to refresh %s: %w", view, classifyError(err))
	}
	return nil
}
