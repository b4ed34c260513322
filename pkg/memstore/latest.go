package memstore

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/l10nledger/ledger/pkg/models"
	"github.com/l10nledger/ledger/pkg/repositories"
	"github.com/l10nledger/ledger/pkg/selection"
)

type tripleKey struct {
	file, key, lang string
}

// latestSnapshot is immutable once published.
type latestSnapshot struct {
	byTriple map[tripleKey]*models.TranslationVersion
	byID     map[int64]*models.TranslationVersion
	rows     []*models.TranslationVersion // ordered by file, key, lang
}

// LatestTranslations is the latest-version projection. Readers always see one
// complete published snapshot; Refresh builds the next one and swaps it in.
type LatestTranslations struct {
	store     *Store
	refreshMu sync.Mutex
	snapshot  atomic.Pointer[latestSnapshot]
}

var _ repositories.LatestTranslationIndex = (*LatestTranslations)(nil)

func newLatestTranslations(store *Store) *LatestTranslations {
	lt := &LatestTranslations{store: store}
	lt.snapshot.Store(&latestSnapshot{
		byTriple: map[tripleKey]*models.TranslationVersion{},
		byID:     map[int64]*models.TranslationVersion{},
	})
	return lt
}

func (lt *LatestTranslations) Refresh(ctx context.Context) error {
	lt.refreshMu.Lock()
	defer lt.refreshMu.Unlock()

	if err := checkContext(ctx); err != nil {
		return err
	}

	versions, _ := lt.store.snapshotLogs()

	byTriple := make(map[tripleKey]*models.TranslationVersion)
	for _, v := range versions {
		key := tripleKey{file: v.StringFile, key: v.StringKey, lang: v.LangCode}
		if cur, ok := byTriple[key]; !ok || v.NewerThan(cur) {
			byTriple[key] = v
		}
	}

	if err := checkContext(ctx); err != nil {
		return err
	}

	next := &latestSnapshot{
		byTriple: byTriple,
		byID:     make(map[int64]*models.TranslationVersion, len(byTriple)),
		rows:     make([]*models.TranslationVersion, 0, len(byTriple)),
	}
	for _, v := range byTriple {
		next.byID[v.ID] = v
		next.rows = append(next.rows, v)
	}
	sort.Slice(next.rows, func(i, j int) bool {
		a, b := next.rows[i], next.rows[j]
		if a.StringFile != b.StringFile {
			return a.StringFile < b.StringFile
		}
		if a.StringKey != b.StringKey {
			return a.StringKey < b.StringKey
		}
		return a.LangCode < b.LangCode
	})

	lt.snapshot.Store(next)
	return nil
}

func (lt *LatestTranslations) Lookup(ctx context.Context, stringFile, stringKey, langCode string) (*models.TranslationVersion, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	v, ok := lt.snapshot.Load().byTriple[tripleKey{file: stringFile, key: stringKey, lang: langCode}]
	if !ok {
		return nil, nil
	}
	return cloneVersion(v), nil
}

func (lt *LatestTranslations) ListByString(ctx context.Context, stringFile, stringKey string) ([]*models.TranslationVersion, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	var out []*models.TranslationVersion
	for _, v := range lt.snapshot.Load().rows {
		if v.StringFile == stringFile && v.StringKey == stringKey {
			out = append(out, cloneVersion(v))
		}
	}
	return out, nil
}

func (lt *LatestTranslations) ListCandidatePairs(ctx context.Context, sourceLang, targetLang string) ([]*models.PairCandidate, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	return selection.CandidatePairs(lt.snapshot.Load().rows, sourceLang, targetLang), nil
}

func (lt *LatestTranslations) Count(ctx context.Context) (int, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	return len(lt.snapshot.Load().rows), nil
}

// current returns the published snapshot.
func (lt *LatestTranslations) current() *latestSnapshot {
	return lt.snapshot.Load()
}

type suggestionSnapshot struct {
	byModel map[string][]*models.Suggestion
	counts  map[string]map[models.PairKey]int
}

// LatestSuggestions is the projection of suggestions still addressing latest,
// differing version pairs.
type LatestSuggestions struct {
	store     *Store
	latest    *LatestTranslations
	refreshMu sync.Mutex
	snapshot  atomic.Pointer[suggestionSnapshot]
}

var _ repositories.LatestSuggestionIndex = (*LatestSuggestions)(nil)

func newLatestSuggestions(store *Store, latest *LatestTranslations) *LatestSuggestions {
	ls := &LatestSuggestions{store: store, latest: latest}
	ls.snapshot.Store(&suggestionSnapshot{
		byModel: map[string][]*models.Suggestion{},
		counts:  map[string]map[models.PairKey]int{},
	})
	return ls
}

// Refresh joins the suggestion log against the currently published latest
// snapshot, stale or not.
func (ls *LatestSuggestions) Refresh(ctx context.Context) error {
	ls.refreshMu.Lock()
	defer ls.refreshMu.Unlock()

	if err := checkContext(ctx); err != nil {
		return err
	}

	latest := ls.latest.current()
	_, suggestions := ls.store.snapshotLogs()

	next := &suggestionSnapshot{
		byModel: make(map[string][]*models.Suggestion),
		counts:  make(map[string]map[models.PairKey]int),
	}
	for _, sg := range suggestions {
		source, ok := latest.byID[sg.SourceID]
		if !ok {
			continue
		}
		target, ok := latest.byID[sg.TargetID]
		if !ok || source.Body == target.Body {
			continue
		}

		next.byModel[sg.ModelID] = append(next.byModel[sg.ModelID], sg)
		counts, ok := next.counts[sg.ModelID]
		if !ok {
			counts = make(map[models.PairKey]int)
			next.counts[sg.ModelID] = counts
		}
		counts[sg.Pair()]++
	}

	for _, list := range next.byModel {
		sort.Slice(list, func(i, j int) bool { return list[i].ListedBefore(list[j]) })
	}

	ls.snapshot.Store(next)
	return nil
}

func (ls *LatestSuggestions) CountByPair(ctx context.Context, modelID string) (map[models.PairKey]int, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	counts := ls.snapshot.Load().counts[modelID]
	out := make(map[models.PairKey]int, len(counts))
	for k, n := range counts {
		out[k] = n
	}
	return out, nil
}

func (ls *LatestSuggestions) ListByModel(ctx context.Context, modelID string) ([]*models.Suggestion, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	list := ls.snapshot.Load().byModel[modelID]
	out := make([]*models.Suggestion, 0, len(list))
	for _, sg := range list {
		out = append(out, cloneSuggestion(sg))
	}
	return out, nil
}
