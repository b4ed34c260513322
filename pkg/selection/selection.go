// Package selection implements the work-queue ranking: which (source, target)
// string pairs most need a new suggestion from a given model.
//
// Everything here is a pure function over already-materialized collections so
// that both storage backends share one comparator and one filter.
package selection

import (
	"fmt"
	"sort"

	"github.com/l10nledger/ledger/pkg/apperrors"
	"github.com/l10nledger/ledger/pkg/models"
)

// Params are the inputs of a pair selection.
type Params struct {
	SourceLang string `json:"source_lang" yaml:"source_lang"`
	TargetLang string `json:"target_lang" yaml:"target_lang"`
	ModelID    string `json:"model_id" yaml:"model_id"`
	// MaxSuggestions (M) excludes pairs already covered by at least M suggestions.
	MaxSuggestions int `json:"max_suggestions" yaml:"max_suggestions"`
	// Limit (N) is the batch size.
	Limit int `json:"limit" yaml:"limit"`
}

// Validate checks the parameters before any storage access.
func (p Params) Validate() error {
	switch {
	case p.SourceLang == "":
		return fmt.Errorf("%w: source language is required", apperrors.ErrInvalidInput)
	case p.TargetLang == "":
		return fmt.Errorf("%w: target language is required", apperrors.ErrInvalidInput)
	case p.ModelID == "":
		return fmt.Errorf("%w: model id is required", apperrors.ErrInvalidInput)
	case p.MaxSuggestions < 0:
		return fmt.Errorf("%w: max suggestions must not be negative", apperrors.ErrInvalidInput)
	case p.Limit <= 0:
		return fmt.Errorf("%w: limit must be positive", apperrors.ErrInvalidInput)
	}
	return nil
}

// CandidatePairs joins the latest versions of sourceLang and targetLang on
// (string_file, string_key) and keeps the pairs whose bodies differ.
// latest must hold at most one version per (file, key, lang).
func CandidatePairs(latest []*models.TranslationVersion, sourceLang, targetLang string) []*models.PairCandidate {
	sources := make(map[models.StringRef]*models.TranslationVersion)
	for _, v := range latest {
		if v.LangCode == sourceLang {
			sources[v.Ref()] = v
		}
	}

	var out []*models.PairCandidate
	for _, target := range latest {
		if target.LangCode != targetLang {
			continue
		}
		source, ok := sources[target.Ref()]
		if !ok || source.Body == target.Body {
			continue
		}
		out = append(out, &models.PairCandidate{
			StringFile:    target.StringFile,
			StringKey:     target.StringKey,
			SourceID:      source.ID,
			TargetID:      target.ID,
			SourceBody:    source.Body,
			TargetBody:    target.Body,
			SourceAddedAt: source.AddedAt,
			TargetAddedAt: target.AddedAt,
		})
	}
	return out
}

// Rank attaches suggestion counts to the candidates, drops the ones with
// count >= maxSuggestions, orders the rest with Less and returns at most limit.
// The input slice is not modified.
func Rank(candidates []*models.PairCandidate, counts map[models.PairKey]int, maxSuggestions, limit int) []*models.PairCandidate {
	if limit <= 0 {
		return []*models.PairCandidate{}
	}

	ranked := make([]*models.PairCandidate, 0, len(candidates))
	for _, c := range candidates {
		n := counts[c.Key()]
		if n >= maxSuggestions {
			continue
		}
		cp := *c
		cp.SuggestionsCount = n
		ranked = append(ranked, &cp)
	}

	sort.Slice(ranked, func(i, j int) bool { return Less(ranked[i], ranked[j]) })

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Less orders candidates least-covered first, then by older target edit,
// then by older source edit. Remaining ties resolve on target id, then source id.
func Less(a, b *models.PairCandidate) bool {
	if a.SuggestionsCount != b.SuggestionsCount {
		return a.SuggestionsCount < b.SuggestionsCount
	}
	if !a.TargetAddedAt.Equal(b.TargetAddedAt) {
		return a.TargetAddedAt.Before(b.TargetAddedAt)
	}
	if !a.SourceAddedAt.Equal(b.SourceAddedAt) {
		return a.SourceAddedAt.Before(b.SourceAddedAt)
	}
	if a.TargetID != b.TargetID {
		return a.TargetID < b.TargetID
	}
	return a.SourceID < b.SourceID
}

// ContextStrings filters the latest versions of one string down to the
// languages other than the pair's, skipping bodies equal to either side.
func ContextStrings(siblings []*models.TranslationVersion, pair *models.PairCandidate, sourceLang, targetLang string) []*models.TranslationVersion {
	out := make([]*models.TranslationVersion, 0, len(siblings))
	for _, v := range siblings {
		if v.StringFile != pair.StringFile || v.StringKey != pair.StringKey {
			continue
		}
		if v.LangCode == sourceLang || v.LangCode == targetLang {
			continue
		}
		if v.Body == pair.SourceBody || v.Body == pair.TargetBody {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LangCode < out[j].LangCode })
	return out
}
