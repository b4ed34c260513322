package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l10nledger/ledger/pkg/apperrors"
	"github.com/l10nledger/ledger/pkg/models"
)

// fakeClock hands out strictly increasing timestamps unless frozen.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func strPtr(s string) *string { return &s }

func appendVersion(t *testing.T, s *Store, file, key, lang, body string) *models.TranslationVersion {
	t.Helper()
	v := &models.TranslationVersion{StringFile: file, StringKey: key, LangCode: lang, Body: body}
	_, err := s.Translations().Append(context.Background(), v)
	require.NoError(t, err)
	return v
}

func refreshAll(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.LatestTranslations().Refresh(ctx))
	require.NoError(t, s.LatestSuggestions().Refresh(ctx))
}

func TestTranslations_AppendIsIdempotent(t *testing.T) {
	s := New(WithClock(newFakeClock().Now))
	ctx := context.Background()

	first := &models.TranslationVersion{StringFile: "a.json", StringKey: "greeting", LangCode: "en", Body: "Hello"}
	created, err := s.Translations().Append(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), first.ID)

	for i := 0; i < 3; i++ {
		again := &models.TranslationVersion{StringFile: "a.json", StringKey: "greeting", LangCode: "en", Body: "Hello"}
		created, err := s.Translations().Append(ctx, again)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, again.ID)
		assert.Equal(t, first.AddedAt, again.AddedAt)
	}

	versions, err := s.Translations().ListVersions(ctx, "a.json", "greeting", "en")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestTranslations_NewBodyIsNewVersion(t *testing.T) {
	s := New(WithClock(newFakeClock().Now))
	ctx := context.Background()

	v1 := appendVersion(t, s, "a.json", "greeting", "fr", "Bonjour")
	v2 := appendVersion(t, s, "a.json", "greeting", "fr", "Bonjour!")
	v3 := appendVersion(t, s, "a.json", "greeting", "fr", "Bonjour") // back to the first body

	assert.NotEqual(t, v1.ID, v2.ID)
	assert.Equal(t, v1.ID, v3.ID)
	assert.Greater(t, v2.ID, v1.ID)

	versions, err := s.Translations().ListVersions(ctx, "a.json", "greeting", "fr")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "Bonjour", versions[0].Body)
	assert.Equal(t, "Bonjour!", versions[1].Body)

	got, err := s.Translations().GetByID(ctx, v2.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Bonjour!", got.Body)

	missing, err := s.Translations().GetByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTranslations_AppendValidation(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Translations().Append(ctx, &models.TranslationVersion{StringKey: "k", LangCode: "en", Body: "x"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	created, err := s.Translations().Append(ctx, &models.TranslationVersion{StringFile: "f", StringKey: "k", LangCode: "en", Body: ""})
	require.NoError(t, err, "empty body is a valid translation")
	assert.True(t, created)
}

func TestTranslations_AppendBatchIsAtomicOnValidation(t *testing.T) {
	s := New()
	ctx := context.Background()

	batch := []*models.TranslationVersion{
		{StringFile: "f", StringKey: "a", LangCode: "en", Body: "A"},
		{StringFile: "f", StringKey: "", LangCode: "en", Body: "B"},
	}
	_, err := s.Translations().AppendBatch(ctx, batch)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	versions, err := s.Translations().ListVersions(ctx, "f", "a", "en")
	require.NoError(t, err)
	assert.Empty(t, versions)

	batch[1].StringKey = "b"
	created, err := s.Translations().AppendBatch(ctx, append(batch, &models.TranslationVersion{StringFile: "f", StringKey: "a", LangCode: "en", Body: "A"}))
	require.NoError(t, err)
	assert.Equal(t, 2, created)
}

func TestTranslations_ConcurrentIdenticalAppends(t *testing.T) {
	s := New()
	ctx := context.Background()

	const writers = 32
	ids := make([]int64, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := &models.TranslationVersion{StringFile: "f", StringKey: "k", LangCode: "en", Body: "same"}
			_, err := s.Translations().Append(ctx, v)
			assert.NoError(t, err)
			ids[i] = v.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	versions, err := s.Translations().ListVersions(ctx, "f", "k", "en")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestLatestTranslations_PicksMaxAddedAt(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, body := range []string{"v-late", "v-early", "v-mid"} {
		offsets := []time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour}
		_, err := s.Translations().Append(ctx, &models.TranslationVersion{
			StringFile: "f", StringKey: "k", LangCode: "en", Body: body, AddedAt: base.Add(offsets[i]),
		})
		require.NoError(t, err)
	}

	require.NoError(t, s.LatestTranslations().Refresh(ctx))

	latest, err := s.LatestTranslations().Lookup(ctx, "f", "k", "en")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "v-late", latest.Body)

	absent, err := s.LatestTranslations().Lookup(ctx, "f", "k", "de")
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestLatestTranslations_TieBreaksOnHighestID(t *testing.T) {
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return frozen }))
	ctx := context.Background()

	appendVersion(t, s, "f", "k", "en", "first")
	second := appendVersion(t, s, "f", "k", "en", "second")

	for i := 0; i < 3; i++ {
		require.NoError(t, s.LatestTranslations().Refresh(ctx))
		latest, err := s.LatestTranslations().Lookup(ctx, "f", "k", "en")
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)
	}
}

func TestLatestTranslations_StaleUntilRefresh(t *testing.T) {
	s := New(WithClock(newFakeClock().Now))
	ctx := context.Background()

	en := appendVersion(t, s, "a.json", "greeting", "en", "Hello")
	fr := appendVersion(t, s, "a.json", "greeting", "fr", "Bonjour")
	refreshAll(t, s)

	require.NoError(t, s.Suggestions().Append(ctx, &models.Suggestion{
		SourceID: en.ID, TargetID: fr.ID, ModelID: "m1", SuggestedBody: strPtr("Salut"), Elapsed: time.Second,
	}))
	require.NoError(t, s.LatestSuggestions().Refresh(ctx))

	counts, err := s.LatestSuggestions().CountByPair(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.PairKey{SourceID: en.ID, TargetID: fr.ID}])

	appendVersion(t, s, "a.json", "greeting", "fr", "Bonjour!")

	latest, err := s.LatestTranslations().Lookup(ctx, "a.json", "greeting", "fr")
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", latest.Body, "index must not change before refresh")

	require.NoError(t, s.LatestTranslations().Refresh(ctx))
	latest, err = s.LatestTranslations().Lookup(ctx, "a.json", "greeting", "fr")
	require.NoError(t, err)
	assert.Equal(t, "Bonjour!", latest.Body)

	// suggestion index still stale until its own refresh
	counts, err = s.LatestSuggestions().CountByPair(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, counts, 1)

	require.NoError(t, s.LatestSuggestions().Refresh(ctx))
	counts, err = s.LatestSuggestions().CountByPair(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, counts, "suggestion pinned to the old target is excluded")

	list, err := s.LatestSuggestions().ListByModel(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLatestTranslations_RefreshIsIdempotent(t *testing.T) {
	s := New(WithClock(newFakeClock().Now))
	ctx := context.Background()

	appendVersion(t, s, "a", "k1", "en", "one")
	appendVersion(t, s, "a", "k1", "fr", "un")
	appendVersion(t, s, "a", "k2", "en", "two")
	appendVersion(t, s, "b", "k1", "en", "three")

	require.NoError(t, s.LatestTranslations().Refresh(ctx))
	first, err := s.LatestTranslations().ListCandidatePairs(ctx, "en", "fr")
	require.NoError(t, err)
	firstCount, err := s.LatestTranslations().Count(ctx)
	require.NoError(t, err)
	firstRows := s.LatestTranslations().current().rows

	require.NoError(t, s.LatestTranslations().Refresh(ctx))
	second, err := s.LatestTranslations().ListCandidatePairs(ctx, "en", "fr")
	require.NoError(t, err)
	secondCount, err := s.LatestTranslations().Count(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, firstCount)
	assert.Equal(t, firstCount, secondCount)
	assert.Equal(t, first, second)
	assert.Equal(t, firstRows, s.LatestTranslations().current().rows)
}

func TestLatestTranslations_ListByString(t *testing.T) {
	s := New(WithClock(newFakeClock().Now))
	ctx := context.Background()

	appendVersion(t, s, "a", "k", "fr", "un")
	appendVersion(t, s, "a", "k", "en", "one")
	appendVersion(t, s, "a", "k", "de", "eins")
	appendVersion(t, s, "a", "other", "en", "x")
	require.NoError(t, s.LatestTranslations().Refresh(ctx))

	list, err := s.LatestTranslations().ListByString(ctx, "a", "k")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"de", "en", "fr"}, []string{list[0].LangCode, list[1].LangCode, list[2].LangCode})
}

func TestLatestTranslations_ConcurrentAppendsAndRefreshes(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				v := &models.TranslationVersion{StringFile: "f", StringKey: fmt.Sprintf("k%d", i%10), LangCode: "en", Body: fmt.Sprintf("w%d-%d", w, i)}
				_, err := s.Translations().Append(ctx, v)
				assert.NoError(t, err)
			}
		}(w)
	}
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, s.LatestTranslations().Refresh(ctx))
				n, err := s.LatestTranslations().Count(ctx)
				assert.NoError(t, err)
				assert.LessOrEqual(t, n, 10)
			}
		}()
	}
	wg.Wait()

	require.NoError(t, s.LatestTranslations().Refresh(ctx))
	n, err := s.LatestTranslations().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestSuggestions_Append(t *testing.T) {
	s := New(WithClock(newFakeClock().Now))
	ctx := context.Background()

	en := appendVersion(t, s, "a.json", "greeting", "en", "Hello")
	fr := appendVersion(t, s, "a.json", "greeting", "fr", "Bonjour")

	tokens := 42
	sg := &models.Suggestion{
		SourceID: en.ID, TargetID: fr.ID, ModelID: "m1",
		SuggestedBody: strPtr("Salut"), Comment: strPtr("less formal"),
		Elapsed: 1500 * time.Millisecond,
		Usage:   &models.Usage{CompletionTokens: &tokens},
	}
	require.NoError(t, s.Suggestions().Append(ctx, sg))
	assert.NotEqual(t, [16]byte{}, [16]byte(sg.ID))
	assert.False(t, sg.AddedAt.IsZero())

	noChange := &models.Suggestion{SourceID: en.ID, TargetID: fr.ID, ModelID: "m1", Elapsed: time.Second}
	require.NoError(t, s.Suggestions().Append(ctx, noChange))
	assert.False(t, noChange.HasSuggestion())

	list, err := s.Suggestions().ListByPair(ctx, en.ID, fr.ID, "m1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Salut", *list[0].SuggestedBody)
	assert.Equal(t, 42, *list[0].Usage.CompletionTokens)
	assert.Nil(t, list[0].Usage.PromptTokens)
	assert.Nil(t, list[1].SuggestedBody)

	// stored copies are isolated from caller mutation
	*sg.SuggestedBody = "mutated"
	list, err = s.Suggestions().ListByPair(ctx, en.ID, fr.ID, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Salut", *list[0].SuggestedBody)
}

func TestSuggestions_AppendErrors(t *testing.T) {
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return frozen }))
	ctx := context.Background()

	en := appendVersion(t, s, "a", "k", "en", "Hello")
	fr := appendVersion(t, s, "a", "k", "fr", "Bonjour")

	err := s.Suggestions().Append(ctx, &models.Suggestion{SourceID: en.ID, TargetID: 999, ModelID: "m1"})
	assert.True(t, errors.Is(err, apperrors.ErrUnknownReference))

	err = s.Suggestions().Append(ctx, &models.Suggestion{SourceID: en.ID, TargetID: fr.ID})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	require.NoError(t, s.Suggestions().Append(ctx, &models.Suggestion{SourceID: en.ID, TargetID: fr.ID, ModelID: "m1"}))
	err = s.Suggestions().Append(ctx, &models.Suggestion{SourceID: en.ID, TargetID: fr.ID, ModelID: "m1"})
	assert.True(t, errors.Is(err, apperrors.ErrConflict), "same (source, target, model, added_at)")

	require.NoError(t, s.Suggestions().Append(ctx, &models.Suggestion{SourceID: en.ID, TargetID: fr.ID, ModelID: "m2"}))
}

func TestLatestSuggestions_ExcludesIdenticalBodies(t *testing.T) {
	s := New(WithClock(newFakeClock().Now))
	ctx := context.Background()

	en := appendVersion(t, s, "a", "ok", "en", "OK")
	fr := appendVersion(t, s, "a", "ok", "fr", "OK")
	refreshAll(t, s)

	require.NoError(t, s.Suggestions().Append(ctx, &models.Suggestion{SourceID: en.ID, TargetID: fr.ID, ModelID: "m1"}))
	require.NoError(t, s.LatestSuggestions().Refresh(ctx))

	list, err := s.LatestSuggestions().ListByModel(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLatestSuggestions_OnlyLatestDifferingPairs(t *testing.T) {
	s := New(WithClock(newFakeClock().Now))
	ctx := context.Background()

	en := appendVersion(t, s, "a", "k", "en", "Hello")
	frOld := appendVersion(t, s, "a", "k", "fr", "Bonjour")
	frNew := appendVersion(t, s, "a", "k", "fr", "Salut")
	de := appendVersion(t, s, "a", "k", "de", "Hallo")

	for _, target := range []int64{frOld.ID, frNew.ID, frNew.ID, de.ID} {
		require.NoError(t, s.Suggestions().Append(ctx, &models.Suggestion{SourceID: en.ID, TargetID: target, ModelID: "m1"}))
	}
	refreshAll(t, s)

	latestByID := map[int64]bool{}
	for _, lang := range []string{"en", "fr", "de"} {
		v, err := s.LatestTranslations().Lookup(ctx, "a", "k", lang)
		require.NoError(t, err)
		latestByID[v.ID] = true
	}

	list, err := s.LatestSuggestions().ListByModel(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	for _, sg := range list {
		assert.True(t, latestByID[sg.SourceID])
		assert.True(t, latestByID[sg.TargetID])
	}

	counts, err := s.LatestSuggestions().CountByPair(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, map[models.PairKey]int{
		{SourceID: en.ID, TargetID: frNew.ID}: 2,
		{SourceID: en.ID, TargetID: de.ID}:    1,
	}, counts)

	other, err := s.LatestSuggestions().CountByPair(ctx, "m2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestContextCancellation(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Translations().Append(ctx, &models.TranslationVersion{StringFile: "f", StringKey: "k", LangCode: "en"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.LatestTranslations().Refresh(ctx), context.Canceled)
	assert.ErrorIs(t, s.LatestSuggestions().Refresh(ctx), context.Canceled)
}

func TestLatestSuggestions_ListByModelOrder(t *testing.T) {
	s := New(WithClock(newFakeClock().Now))
	ctx := context.Background()

	en1 := appendVersion(t, s, "a", "k1", "en", "One")
	fr1 := appendVersion(t, s, "a", "k1", "fr", "Un")
	en2 := appendVersion(t, s, "a", "k2", "en", "Two")
	fr2 := appendVersion(t, s, "a", "k2", "fr", "Deux")

	same := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	earlier := same.Add(-time.Hour)
	for _, sg := range []*models.Suggestion{
		{SourceID: en2.ID, TargetID: fr2.ID, ModelID: "m1", AddedAt: same},
		{SourceID: en1.ID, TargetID: fr1.ID, ModelID: "m1", AddedAt: same},
		{SourceID: en2.ID, TargetID: fr2.ID, ModelID: "m1", AddedAt: earlier},
	} {
		require.NoError(t, s.Suggestions().Append(ctx, sg))
	}
	refreshAll(t, s)

	list, err := s.LatestSuggestions().ListByModel(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, earlier, list[0].AddedAt)
	assert.Equal(t, en1.ID, list[1].SourceID, "equal added_at falls back to source id")
	assert.Equal(t, en2.ID, list[2].SourceID)
}
