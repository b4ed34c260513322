// Package memstore is an in-process storage engine for the translation ledger:
// an append-only event log of translation versions and suggestions plus
// refreshable projections holding the latest views.
//
// It implements the same repository interfaces as the Postgres backend and is
// safe for concurrent use.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/l10nledger/ledger/pkg/models"
)

type contentKey struct {
	file, key, lang, body string
}

type suggestionKey struct {
	sourceID, targetID int64
	modelID            string
	addedAt            int64
}

// Store owns the event logs. The projections read from it on Refresh only.
type Store struct {
	mu    sync.RWMutex
	clock func() time.Time

	versions  []*models.TranslationVersion // index i holds ID i+1
	byContent map[contentKey]int64

	suggestions    []*models.Suggestion
	suggestionKeys map[suggestionKey]struct{}

	translations       *Translations
	suggestionStore    *Suggestions
	latestTranslations *LatestTranslations
	latestSuggestions  *LatestSuggestions
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the insertion timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		clock:          func() time.Time { return time.Now().UTC() },
		byContent:      make(map[contentKey]int64),
		suggestionKeys: make(map[suggestionKey]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.translations = &Translations{store: s}
	s.suggestionStore = &Suggestions{store: s}
	s.latestTranslations = newLatestTranslations(s)
	s.latestSuggestions = newLatestSuggestions(s, s.latestTranslations)
	return s
}

// Translations returns the translation version store.
func (s *Store) Translations() *Translations { return s.translations }

// Suggestions returns the suggestion store.
func (s *Store) Suggestions() *Suggestions { return s.suggestionStore }

// LatestTranslations returns the latest-version projection.
func (s *Store) LatestTranslations() *LatestTranslations { return s.latestTranslations }

// LatestSuggestions returns the latest-suggestion projection.
func (s *Store) LatestSuggestions() *LatestSuggestions { return s.latestSuggestions }

func (s *Store) now() time.Time {
	return s.clock().UTC()
}

// versionByID must be called with mu held.
func (s *Store) versionByID(id int64) (*models.TranslationVersion, bool) {
	if id <= 0 || id > int64(len(s.versions)) {
		return nil, false
	}
	return s.versions[id-1], true
}

// snapshotLogs returns the current logs. Entries are never mutated after
// append, so the returned slices are safe to read without the lock.
func (s *Store) snapshotLogs() ([]*models.TranslationVersion, []*models.Suggestion) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[:len(s.versions):len(s.versions)], s.suggestions[:len(s.suggestions):len(s.suggestions)]
}

func checkContext(ctx context.Context) error {
	return ctx.Err()
}

func cloneVersion(v *models.TranslationVersion) *models.TranslationVersion {
	cp := *v
	return &cp
}

func cloneSuggestion(s *models.Suggestion) *models.Suggestion {
	cp := *s
	cp.SuggestedBody = cloneString(s.SuggestedBody)
	cp.Comment = cloneString(s.Comment)
	if s.Usage != nil {
		usage := models.Usage{
			CompletionTokens:  cloneInt(s.Usage.CompletionTokens),
			PromptTokens:      cloneInt(s.Usage.PromptTokens),
			SystemFingerprint: cloneString(s.Usage.SystemFingerprint),
		}
		cp.Usage = &usage
	}
	return &cp
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
