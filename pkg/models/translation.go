package models

import (
	"fmt"
	"time"

	"github.com/l10nledger/ledger/pkg/apperrors"
)

// TranslationVersion is one observed body of one string in one language.
// Rows are append-only: a changed translation is a new row with a new ID.
type TranslationVersion struct {
	ID         int64     `json:"id" yaml:"id"`
	StringFile string    `json:"string_file" yaml:"string_file"`
	StringKey  string    `json:"string_key" yaml:"string_key"`
	LangCode   string    `json:"lang_code" yaml:"lang_code"`
	Body       string    `json:"string_body" yaml:"string_body"`
	AddedAt    time.Time `json:"added_at" yaml:"added_at"`
}

// StringRef identifies a logical string independent of language.
type StringRef struct {
	File string
	Key  string
}

// Ref returns the language-independent identity of the version.
func (v *TranslationVersion) Ref() StringRef {
	return StringRef{File: v.StringFile, Key: v.StringKey}
}

// Validate checks required fields. An empty body is a valid translation.
func (v *TranslationVersion) Validate() error {
	switch {
	case v.StringFile == "":
		return fmt.Errorf("%w: string_file is required", apperrors.ErrInvalidInput)
	case v.StringKey == "":
		return fmt.Errorf("%w: string_key is required", apperrors.ErrInvalidInput)
	case v.LangCode == "":
		return fmt.Errorf("%w: lang_code is required", apperrors.ErrInvalidInput)
	}
	return nil
}

// NewerThan reports whether v supersedes other as the latest version of the
// same string: later added_at wins, equal timestamps fall back to the higher ID.
func (v *TranslationVersion) NewerThan(other *TranslationVersion) bool {
	if !v.AddedAt.Equal(other.AddedAt) {
		return v.AddedAt.After(other.AddedAt)
	}
	return v.ID > other.ID
}
