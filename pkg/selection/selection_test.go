package selection

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l10nledger/ledger/pkg/apperrors"
	"github.com/l10nledger/ledger/pkg/models"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

func version(id int64, file, key, lang, body string, minutes int) *models.TranslationVersion {
	return &models.TranslationVersion{
		ID:         id,
		StringFile: file,
		StringKey:  key,
		LangCode:   lang,
		Body:       body,
		AddedAt:    at(minutes),
	}
}

func TestParams_Validate(t *testing.T) {
	valid := Params{SourceLang: "en", TargetLang: "fr", ModelID: "m1", MaxSuggestions: 1, Limit: 10}
	require.NoError(t, valid.Validate())

	zeroM := valid
	zeroM.MaxSuggestions = 0
	require.NoError(t, zeroM.Validate(), "M=0 is allowed")

	sameLang := valid
	sameLang.TargetLang = sameLang.SourceLang
	require.NoError(t, sameLang.Validate(), "equal languages select nothing rather than fail")

	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"missing source", func(p *Params) { p.SourceLang = "" }},
		{"missing target", func(p *Params) { p.TargetLang = "" }},
		{"missing model", func(p *Params) { p.ModelID = "" }},
		{"negative threshold", func(p *Params) { p.MaxSuggestions = -1 }},
		{"zero limit", func(p *Params) { p.Limit = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
		})
	}
}

func TestCandidatePairs(t *testing.T) {
	latest := []*models.TranslationVersion{
		version(1, "a.json", "greeting", "en", "Hello", 0),
		version(2, "a.json", "greeting", "fr", "Bonjour", 1),
		version(3, "a.json", "ok", "en", "OK", 0),
		version(4, "a.json", "ok", "fr", "OK", 0), // identical body
		version(5, "a.json", "bye", "en", "Bye", 0), // no target
		version(6, "b.json", "greeting", "fr", "Salut", 0), // no source
		version(7, "a.json", "greeting", "de", "Hallo", 0), // other language
	}

	pairs := CandidatePairs(latest, "en", "fr")
	require.Len(t, pairs, 1)

	p := pairs[0]
	assert.Equal(t, "a.json", p.StringFile)
	assert.Equal(t, "greeting", p.StringKey)
	assert.Equal(t, int64(1), p.SourceID)
	assert.Equal(t, int64(2), p.TargetID)
	assert.Equal(t, "Hello", p.SourceBody)
	assert.Equal(t, "Bonjour", p.TargetBody)
	assert.Equal(t, at(0), p.SourceAddedAt)
	assert.Equal(t, at(1), p.TargetAddedAt)
	assert.Zero(t, p.SuggestionsCount)
}

func TestCandidatePairs_SameLanguage(t *testing.T) {
	latest := []*models.TranslationVersion{
		version(1, "a.json", "greeting", "en", "Hello", 0),
		version(2, "a.json", "greeting", "fr", "Bonjour", 0),
	}
	assert.Empty(t, CandidatePairs(latest, "en", "en"))
}

func TestCandidatePairs_Empty(t *testing.T) {
	assert.Empty(t, CandidatePairs(nil, "en", "fr"))
}

func candidate(src, tgt int64, srcMin, tgtMin int) *models.PairCandidate {
	return &models.PairCandidate{
		StringFile:    "f",
		StringKey:     "k",
		SourceID:      src,
		TargetID:      tgt,
		SourceAddedAt: at(srcMin),
		TargetAddedAt: at(tgtMin),
	}
}

func TestRank_OrderAndFilter(t *testing.T) {
	candidates := []*models.PairCandidate{
		candidate(1, 2, 0, 5),  // count 2
		candidate(3, 4, 0, 9),  // count 0, newer target
		candidate(5, 6, 0, 1),  // count 1
		candidate(7, 8, 0, 3),  // count 0, older target
		candidate(9, 10, 0, 0), // count 3, filtered by M=3
	}
	counts := map[models.PairKey]int{
		{SourceID: 1, TargetID: 2}:  2,
		{SourceID: 5, TargetID: 6}:  1,
		{SourceID: 9, TargetID: 10}: 3,
		{SourceID: 99, TargetID: 2}: 7, // unrelated pair
	}

	ranked := Rank(candidates, counts, 3, 10)
	require.Len(t, ranked, 4)

	var got []int64
	for _, r := range ranked {
		got = append(got, r.TargetID)
		assert.Less(t, r.SuggestionsCount, 3)
	}
	assert.Equal(t, []int64{8, 4, 6, 2}, got)
	assert.Equal(t, []int{0, 0, 1, 2}, []int{
		ranked[0].SuggestionsCount, ranked[1].SuggestionsCount,
		ranked[2].SuggestionsCount, ranked[3].SuggestionsCount,
	})

	// input untouched
	assert.Zero(t, candidates[0].SuggestionsCount)
}

func TestRank_SourceAddedAtBreaksTies(t *testing.T) {
	candidates := []*models.PairCandidate{
		candidate(1, 2, 7, 4),
		candidate(3, 4, 2, 4),
		candidate(5, 6, 5, 4),
	}

	ranked := Rank(candidates, nil, 1, 10)
	require.Len(t, ranked, 3)
	assert.Equal(t, int64(3), ranked[0].SourceID)
	assert.Equal(t, int64(5), ranked[1].SourceID)
	assert.Equal(t, int64(1), ranked[2].SourceID)
}

func TestRank_IDsBreakFullTies(t *testing.T) {
	candidates := []*models.PairCandidate{
		candidate(5, 9, 0, 0),
		candidate(4, 7, 0, 0),
		candidate(2, 7, 0, 0),
	}

	ranked := Rank(candidates, nil, 1, 10)
	require.Len(t, ranked, 3)
	assert.Equal(t, models.PairKey{SourceID: 2, TargetID: 7}, ranked[0].Key())
	assert.Equal(t, models.PairKey{SourceID: 4, TargetID: 7}, ranked[1].Key())
	assert.Equal(t, models.PairKey{SourceID: 5, TargetID: 9}, ranked[2].Key())
}

func TestRank_ZeroThresholdExcludesAll(t *testing.T) {
	candidates := []*models.PairCandidate{
		candidate(1, 2, 0, 0),
		candidate(3, 4, 0, 1),
	}
	counts := map[models.PairKey]int{{SourceID: 1, TargetID: 2}: 1}

	assert.Empty(t, Rank(candidates, counts, 0, 10))

	ranked := Rank(candidates, counts, 1, 10)
	require.Len(t, ranked, 1)
	assert.Equal(t, int64(4), ranked[0].TargetID)
}

func TestRank_Limit(t *testing.T) {
	candidates := []*models.PairCandidate{
		candidate(1, 2, 0, 3),
		candidate(3, 4, 0, 2),
		candidate(5, 6, 0, 1),
	}

	ranked := Rank(candidates, nil, 1, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, int64(6), ranked[0].TargetID)
	assert.Equal(t, int64(4), ranked[1].TargetID)
}

func TestRank_NoCandidates(t *testing.T) {
	ranked := Rank(nil, nil, 1, 10)
	assert.NotNil(t, ranked)
	assert.Empty(t, ranked)
}

func TestContextStrings(t *testing.T) {
	pair := &models.PairCandidate{
		StringFile: "a.json",
		StringKey:  "greeting",
		SourceBody: "Hello",
		TargetBody: "Bonjour",
	}
	siblings := []*models.TranslationVersion{
		version(1, "a.json", "greeting", "en", "Hello", 0),
		version(2, "a.json", "greeting", "fr", "Bonjour", 0),
		version(3, "a.json", "greeting", "es", "Hola", 0),
		version(4, "a.json", "greeting", "de", "Hallo", 0),
		version(5, "a.json", "greeting", "nl", "Hello", 0), // same as source
		version(6, "a.json", "other", "it", "Ciao", 0),    // other key
	}

	extra := ContextStrings(siblings, pair, "en", "fr")
	require.Len(t, extra, 2)
	assert.Equal(t, "de", extra[0].LangCode)
	assert.Equal(t, "es", extra[1].LangCode)
}
