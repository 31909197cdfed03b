package services

import (
	"context"

	"tutorial-progress-system/storage"
)

// CompletionLedger records that a user finished a step, exactly once per
// (user, step). It is the single idempotence boundary of the pipeline:
// points, streak and badge effects are all gated on isNew.
type CompletionLedger struct {
	store storage.Store
}

func NewCompletionLedger(store storage.Store) *CompletionLedger {
	return &CompletionLedger{store: store}
}

// Record inserts the completion if absent. On a duplicate (repeat submit,
// network retry, concurrent double-click) it reports isNew=false and mutates
// nothing.
func (l *CompletionLedger) Record(ctx context.Context, userID, stepID string) (bool, error) {
	return l.store.RecordCompletion(ctx, userID, stepID)
}
