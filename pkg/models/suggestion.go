package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/l10nledger/ledger/pkg/apperrors"
)

// Suggestion is one model's proposal (or explicit non-proposal) for a pinned
// source/target version pair. Identity is (SourceID, TargetID, ModelID, AddedAt);
// ID is a surrogate handle returned to producers.
type Suggestion struct {
	ID            uuid.UUID     `json:"id" yaml:"id"`
	SourceID      int64         `json:"source_id" yaml:"source_id"`
	TargetID      int64         `json:"target_id" yaml:"target_id"`
	ModelID       string        `json:"model_id" yaml:"model_id"`
	AddedAt       time.Time     `json:"added_at" yaml:"added_at"`
	SuggestedBody *string       `json:"suggestion_string_body,omitempty" yaml:"suggestion_string_body,omitempty"` // nil: model suggested no change
	Comment       *string       `json:"suggestion_comment,omitempty" yaml:"suggestion_comment,omitempty"`
	Elapsed       time.Duration `json:"elapsed" yaml:"elapsed"`
	Usage         *Usage        `json:"usage,omitempty" yaml:"usage,omitempty"`
}

// Usage is the token accounting reported by the generating integration.
// Any field may be missing when the integration does not report it.
type Usage struct {
	CompletionTokens  *int    `json:"completion_tokens,omitempty" yaml:"completion_tokens,omitempty"`
	PromptTokens      *int    `json:"prompt_tokens,omitempty" yaml:"prompt_tokens,omitempty"`
	SystemFingerprint *string `json:"system_fingerprint,omitempty" yaml:"system_fingerprint,omitempty"`
}

// HasSuggestion reports whether the model proposed a replacement body.
func (s *Suggestion) HasSuggestion() bool {
	return s.SuggestedBody != nil
}

// Pair returns the pinned version pair the suggestion addresses.
func (s *Suggestion) Pair() PairKey {
	return PairKey{SourceID: s.SourceID, TargetID: s.TargetID}
}

// ListedBefore is the listing order of suggestions within one model:
// added_at, then source id, then target id.
func (s *Suggestion) ListedBefore(other *Suggestion) bool {
	if !s.AddedAt.Equal(other.AddedAt) {
		return s.AddedAt.Before(other.AddedAt)
	}
	if s.SourceID != other.SourceID {
		return s.SourceID < other.SourceID
	}
	return s.TargetID < other.TargetID
}

// Validate checks required fields. Referential checks are left to the store.
func (s *Suggestion) Validate() error {
	switch {
	case s.SourceID <= 0:
		return fmt.Errorf("%w: source_id is required", apperrors.ErrInvalidInput)
	case s.TargetID <= 0:
		return fmt.Errorf("%w: target_id is required", apperrors.ErrInvalidInput)
	case s.ModelID == "":
		return fmt.Errorf("%w: model_id is required", apperrors.ErrInvalidInput)
	case s.Elapsed < 0:
		return fmt.Errorf("%w: elapsed must not be negative", apperrors.ErrInvalidInput)
	}
	return nil
}
