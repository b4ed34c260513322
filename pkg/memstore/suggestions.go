package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/l10nledger/ledger/pkg/apperrors"
	"github.com/l10nledger/ledger/pkg/models"
	"github.com/l10nledger/ledger/pkg/repositories"
)

// Suggestions is the in-memory suggestion store.
type Suggestions struct {
	store *Store
}

var _ repositories.SuggestionRepository = (*Suggestions)(nil)

func (x *Suggestions) Append(ctx context.Context, sg *models.Suggestion) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if err := sg.Validate(); err != nil {
		return err
	}

	s := x.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.versionByID(sg.SourceID); !ok {
		return fmt.Errorf("%w: source %d", apperrors.ErrUnknownReference, sg.SourceID)
	}
	if _, ok := s.versionByID(sg.TargetID); !ok {
		return fmt.Errorf("%w: target %d", apperrors.ErrUnknownReference, sg.TargetID)
	}

	addedAt := sg.AddedAt.UTC()
	if sg.AddedAt.IsZero() {
		addedAt = s.now()
	}

	key := suggestionKey{
		sourceID: sg.SourceID,
		targetID: sg.TargetID,
		modelID:  sg.ModelID,
		addedAt:  addedAt.UnixNano(),
	}
	if _, ok := s.suggestionKeys[key]; ok {
		return fmt.Errorf("%w: suggestion (%d, %d, %s) at %s already exists",
			apperrors.ErrConflict, sg.SourceID, sg.TargetID, sg.ModelID, addedAt)
	}

	if sg.ID == uuid.Nil {
		sg.ID = uuid.New()
	}
	sg.AddedAt = addedAt

	s.suggestions = append(s.suggestions, cloneSuggestion(sg))
	s.suggestionKeys[key] = struct{}{}
	return nil
}

func (x *Suggestions) ListByPair(ctx context.Context, sourceID, targetID int64, modelID string) ([]*models.Suggestion, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	_, suggestions := x.store.snapshotLogs()

	var out []*models.Suggestion
	for _, sg := range suggestions {
		if sg.SourceID == sourceID && sg.TargetID == targetID && sg.ModelID == modelID {
			out = append(out, cloneSuggestion(sg))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out, nil
}
