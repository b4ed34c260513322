package models

import "time"

// PairKey identifies a pinned (source version, target version) pair.
type PairKey struct {
	SourceID int64
	TargetID int64
}

// PairCandidate is a (source, target) string pair whose latest bodies differ,
// together with how many latest suggestions already cover it.
type PairCandidate struct {
	StringFile       string    `json:"string_file" yaml:"string_file"`
	StringKey        string    `json:"string_key" yaml:"string_key"`
	SourceID         int64     `json:"source_id" yaml:"source_id"`
	TargetID         int64     `json:"target_id" yaml:"target_id"`
	SourceBody       string    `json:"source_string_body" yaml:"source_string_body"`
	TargetBody       string    `json:"target_string_body" yaml:"target_string_body"`
	SourceAddedAt    time.Time `json:"source_added_at" yaml:"source_added_at"`
	TargetAddedAt    time.Time `json:"target_added_at" yaml:"target_added_at"`
	SuggestionsCount int       `json:"suggestions_count" yaml:"suggestions_count"`
}

// Key returns the pinned version pair of the candidate.
func (c *PairCandidate) Key() PairKey {
	return PairKey{SourceID: c.SourceID, TargetID: c.TargetID}
}
