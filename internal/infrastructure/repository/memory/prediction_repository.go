package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/riskibarqy/prediction-settlement/internal/domain/prediction"
)

// PredictionRepository keeps predictions in process memory for dev mode and
// tests. It applies the same expected-status guard as the Postgres store.
type PredictionRepository struct {
	mu    sync.RWMutex
	items map[string]prediction.Prediction
}

func NewPredictionRepository(items []prediction.Prediction) *PredictionRepository {
	byID := make(map[string]prediction.Prediction, len(items))
	for _, item := range items {
		byID[item.ID] = clonePrediction(item)
	}
	return &PredictionRepository{items: byID}
}

func (r *PredictionRepository) SelectPending(_ context.Context, filter prediction.Filter) ([]prediction.Prediction, error) {
	statuses := filter.EffectiveStatuses()

	r.mu.RLock()
	out := make([]prediction.Prediction, 0, len(r.items))
	for _, item := range r.items {
		if !slices.Contains(statuses, item.Status) {
			continue
		}
		if filter.After != nil && !filter.After.Before(prediction.CursorOf(item)) {
			continue
		}
		out = append(out, clonePrediction(item))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return prediction.CursorOf(out[i]).Before(prediction.CursorOf(out[j]))
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *PredictionRepository) UpdateStatus(_ context.Context, update prediction.StatusUpdate) error {
	if err := update.Validate(); err != nil {
		return fmt.Errorf("update prediction %s: %w", update.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[update.ID]
	if !ok || item.Status != update.ExpectedStatus {
		return fmt.Errorf("update prediction %s from %s: %w", update.ID, update.ExpectedStatus, prediction.ErrStatusConflict)
	}
	item.Status = update.Status
	if update.FixtureRef != nil {
		ref := *update.FixtureRef
		item.FixtureRef = &ref
	}
	r.items[update.ID] = item
	return nil
}

// Get returns a copy of one prediction.
func (r *PredictionRepository) Get(id string) (prediction.Prediction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return prediction.Prediction{}, false
	}
	return clonePrediction(item), true
}

func clonePrediction(item prediction.Prediction) prediction.Prediction {
	if item.FixtureRef != nil {
		ref := *item.FixtureRef
		item.FixtureRef = &ref
	}
	if item.ExpectedKickoff != nil {
		kickoff := *item.ExpectedKickoff
		item.ExpectedKickoff = &kickoff
	}
	return item
}
