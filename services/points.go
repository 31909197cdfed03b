package services

import (
	"context"
	"log"

	"tutorial-progress-system/models"
	"tutorial-progress-system/storage"
)

// PointsPerStep is the fixed award for one qualifying step completion.
const PointsPerStep = 50

// PointsResult is the outcome of one award attempt.
type PointsResult struct {
	Awarded     int // 0 when the step was already credited
	TotalPoints int
	Level       int
	LeveledUp   bool
}

// PointsLedger credits step points exactly once per (user, step) and keeps
// the running total and derived level. The award marker and the total update
// share one transaction, so neither a retried pipeline nor two concurrent
// completions can double-credit or lose an update.
type PointsLedger struct {
	store storage.Store
}

func NewPointsLedger(store storage.Store) *PointsLedger {
	return &PointsLedger{store: store}
}

// AwardForStep credits PointsPerStep for the given completion. Calling it
// again for the same (user, step) — e.g. a completeStep retry after a
// downstream failure — returns Awarded=0 and the current totals.
func (l *PointsLedger) AwardForStep(ctx context.Context, userID, stepID string) (*PointsResult, error) {
	awarded, user, err := l.store.AwardStepPoints(ctx, userID, stepID, PointsPerStep)
	if err != nil {
		return nil, err
	}

	res := &PointsResult{
		TotalPoints: user.TotalPoints,
		Level:       user.Level,
	}
	if awarded {
		res.Awarded = PointsPerStep
		res.LeveledUp = user.Level > models.LevelForPoints(user.TotalPoints-PointsPerStep)
		if res.LeveledUp {
			log.Printf("🎉 Level up: user=%s level=%d (points=%d)", userID, user.Level, user.TotalPoints)
		}
	}
	return res, nil
}
