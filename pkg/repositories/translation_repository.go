package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/l10nledger/ledger/pkg/database"
	"github.com/l10nledger/ledger/pkg/models"
)

// TranslationRepository is the append-only store of translation versions.
// There is no update or delete: a changed string is a new version.
type TranslationRepository interface {
	// Append inserts v and fills its ID and AddedAt. Re-appending byte-identical
	// content is not an error: v receives the existing row and created is false.
	// A zero AddedAt means insertion time.
	Append(ctx context.Context, v *models.TranslationVersion) (created bool, err error)

	// AppendBatch appends all versions atomically and returns how many were new.
	AppendBatch(ctx context.Context, versions []*models.TranslationVersion) (created int, err error)

	// GetByID returns a version by ID, or nil if it does not exist.
	GetByID(ctx context.Context, id int64) (*models.TranslationVersion, error)

	// ListVersions returns the full history of one string in one language, oldest first.
	ListVersions(ctx context.Context, stringFile, stringKey, langCode string) ([]*models.TranslationVersion, error)
}

type translationRepository struct {
	db *database.DB
}

// NewTranslationRepository creates a new TranslationRepository.
func NewTranslationRepository(db *database.DB) TranslationRepository {
	return &translationRepository{db: db}
}

var _ TranslationRepository = (*translationRepository)(nil)

const translationColumns = `id, string_file, string_key, lang_code, string_body, added_at`

func (r *translationRepository) Append(ctx context.Context, v *models.TranslationVersion) (bool, error) {
	if err := v.Validate(); err != nil {
		return false, err
	}
	return r.append(ctx, r.db.Querier(ctx), v)
}

// append relies on the content uniqueness constraint rather than a pre-check.
// When another writer inserted the same content concurrently, the INSERT does
// nothing and the row only becomes visible to a fresh statement snapshot.
func (r *translationRepository) append(ctx context.Context, q database.Querier, v *models.TranslationVersion) (bool, error) {
	digest := bodyDigest(v.Body)

	insert := `
		INSERT INTO translations (string_file, string_key, lang_code, string_body, body_sha256, added_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6::timestamptz, now()))
		ON CONFLICT (string_file, string_key, lang_code, body_sha256) DO NOTHING
		RETURNING id, added_at`

	err := q.QueryRow(ctx, insert,
		v.StringFile,
		v.StringKey,
		v.LangCode,
		v.Body,
		digest,
		nullableTime(v.AddedAt),
	).Scan(&v.ID, &v.AddedAt)
	if err == nil {
		v.AddedAt = v.AddedAt.UTC()
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("failed to append translation: %w", classifyError(err))
	}

	existing := `
		SELECT id, added_at
		FROM translations
		WHERE string_file = $1 AND string_key = $2 AND lang_code = $3 AND body_sha256 = $4`

	err = q.QueryRow(ctx, existing, v.StringFile, v.StringKey, v.LangCode, digest).Scan(&v.ID, &v.AddedAt)
	if err != nil {
		return false, fmt.Errorf("failed to resolve existing translation: %w", classifyError(err))
	}
	v.AddedAt = v.AddedAt.UTC()
	return false, nil
}

func (r *translationRepository) AppendBatch(ctx context.Context, versions []*models.TranslationVersion) (int, error) {
	if len(versions) == 0 {
		return 0, nil
	}

	for i, v := range versions {
		if err := v.Validate(); err != nil {
			return 0, fmt.Errorf("translation %d: %w", i, err)
		}
	}

	// Rows are scanned into copies and only handed back after commit, so a
	// rolled-back batch leaves the caller's versions untouched for a retry.
	stored := make([]models.TranslationVersion, len(versions))
	created := 0
	err := r.db.InTx(ctx, func(ctx context.Context) error {
		created = 0
		q := r.db.Querier(ctx)
		for i, v := range versions {
			stored[i] = *v
			isNew, err := r.append(ctx, q, &stored[i])
			if err != nil {
				return fmt.Errorf("translation %d: %w", i, err)
			}
			if isNew {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, classifyError(err)
	}

	for i, v := range versions {
		v.ID = stored[i].ID
		v.AddedAt = stored[i].AddedAt
	}
	return created, nil
}

func (r *translationRepository) GetByID(ctx context.Context, id int64) (*models.TranslationVersion, error) {
	query := `SELECT ` + translationColumns + ` FROM translations WHERE id = $1`

	v, err := scanTranslation(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get translation: %w", classifyError(err))
	}
	return v, nil
}

func (r *translationRepository) ListVersions(ctx context.Context, stringFile, stringKey, langCode string) ([]*models.TranslationVersion, error) {
	query := `
		SELECT ` + translationColumns + `
		FROM translations
		WHERE string_file = $1 AND string_key = $2 AND lang_code = $3
		ORDER BY added_at ASC, id ASC`

	rows, err := r.db.Querier(ctx).Query(ctx, query, stringFile, stringKey, langCode)
	if err != nil {
		return nil, fmt.Errorf("failed to list translation versions: %w", classifyError(err))
	}
	defer rows.Close()

	return scanTranslations(rows)
}

// Helper functions

func scanTranslation(row pgx.Row) (*models.TranslationVersion, error) {
	var v models.TranslationVersion
	if err := row.Scan(&v.ID, &v.StringFile, &v.StringKey, &v.LangCode, &v.Body, &v.AddedAt); err != nil {
		return nil, err
	}
	v.AddedAt = v.AddedAt.UTC()
	return &v, nil
}

func scanTranslations(rows pgx.Rows) ([]*models.TranslationVersion, error) {
	var versions []*models.TranslationVersion
	for rows.Next() {
		v, err := scanTranslation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan translation: %w", err)
		}
		versions = append(versions, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating translations: %w", classifyError(err))
	}

	return versions, nil
}
