package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/l10nledger/ledger/pkg/models"
	"github.com/l10nledger/ledger/pkg/repositories"
)

// Translations is the in-memory translation version store.
type Translations struct {
	store *Store
}

var _ repositories.TranslationRepository = (*Translations)(nil)

func (t *Translations) Append(ctx context.Context, v *models.TranslationVersion) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}
	if err := v.Validate(); err != nil {
		return false, err
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.appendLocked(v), nil
}

func (t *Translations) AppendBatch(ctx context.Context, versions []*models.TranslationVersion) (int, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	for i, v := range versions {
		if err := v.Validate(); err != nil {
			return 0, fmt.Errorf("translation %d: %w", i, err)
		}
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	created := 0
	for _, v := range versions {
		if t.appendLocked(v) {
			created++
		}
	}
	return created, nil
}

// appendLocked must be called with the store lock held.
func (t *Translations) appendLocked(v *models.TranslationVersion) bool {
	s := t.store
	key := contentKey{file: v.StringFile, key: v.StringKey, lang: v.LangCode, body: v.Body}
	if id, ok := s.byContent[key]; ok {
		existing := s.versions[id-1]
		v.ID = existing.ID
		v.AddedAt = existing.AddedAt
		return false
	}

	if v.AddedAt.IsZero() {
		v.AddedAt = s.now()
	} else {
		v.AddedAt = v.AddedAt.UTC()
	}
	v.ID = int64(len(s.versions)) + 1

	s.versions = append(s.versions, cloneVersion(v))
	s.byContent[key] = v.ID
	return true
}

func (t *Translations) GetByID(ctx context.Context, id int64) (*models.TranslationVersion, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	v, ok := t.store.versionByID(id)
	if !ok {
		return nil, nil
	}
	return cloneVersion(v), nil
}

func (t *Translations) ListVersions(ctx context.Context, stringFile, stringKey, langCode string) ([]*models.TranslationVersion, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	versions, _ := t.store.snapshotLogs()

	var out []*models.TranslationVersion
	for _, v := range versions {
		if v.StringFile == stringFile && v.StringKey == stringKey && v.LangCode == langCode {
			out = append(out, cloneVersion(v))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[j].NewerThan(out[i]) })
	return out, nil
}
