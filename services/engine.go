package services

import (
	"context"
	"log"
	"time"

	"tutorial-progress-system/models"
	"tutorial-progress-system/storage"
)

// CompletionResult is the full outcome of one completeStep call, returned to
// the event source.
type CompletionResult struct {
	AlreadyCompleted    bool           `json:"already_completed"`
	ProgressPercentage  int            `json:"progress_percentage"`
	CertificateIssued   bool           `json:"certificate_issued"` // true only if newly issued this call
	PointsAwarded       int            `json:"points_awarded"`     // 0 if already credited
	TotalPoints         int            `json:"total_points"`
	LeveledUp           bool           `json:"leveled_up"`
	CurrentStreak       int            `json:"current_streak"`
	NewlyUnlockedBadges []models.Badge `json:"newly_unlocked_badges"`
}

// Engine is the single pipeline every completion event goes through. The
// legacy platform grew five divergent mark-complete/quiz-submit handlers,
// some double-awarding points and some swallowing award errors; all call
// sites now funnel through CompleteStep.
type Engine struct {
	store storage.Store

	ledger   *CompletionLedger
	progress *ProgressCalculator
	certs    *CertificateGate
	points   *PointsLedger
	streaks  *StreakEngine
	badges   *BadgeEvaluator

	now func() time.Time
}

func NewEngine(store storage.Store, publisher CertificatePublisher, streakCfg StreakConfig) *Engine {
	return &Engine{
		store:    store,
		ledger:   NewCompletionLedger(store),
		progress: NewProgressCalculator(store),
		certs:    NewCertificateGate(store, publisher),
		points:   NewPointsLedger(store),
		streaks:  NewStreakEngine(store, streakCfg),
		badges:   NewBadgeEvaluator(store),
		now:      time.Now,
	}
}

// Streaks exposes the streak engine for the maintenance scheduler.
func (e *Engine) Streaks() *StreakEngine { return e.streaks }

// Progress exposes the progress calculator for the start-project route.
func (e *Engine) Progress() *ProgressCalculator { return e.progress }

// HandleEvent validates an event and runs it through the pipeline. Quiz
// events additionally record an attempt row; attempt history is never used
// to derive completion.
func (e *Engine) HandleEvent(ctx context.Context, ev models.CompletionEvent) (*CompletionResult, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if ev.Kind == models.EventQuizPassed {
		if err := e.RecordQuizAttempt(ctx, ev.UserID, ev.StepID, ev.Score, ev.TimeSpentSeconds, true); err != nil {
			return nil, err
		}
	}
	return e.CompleteStep(ctx, ev.UserID, ev.StepID)
}

// CompleteStep records the completion and applies every downstream effect.
// Each stage is idempotent on its own, so the pipeline runs in full on every
// call: a retry after a partial failure (completion recorded, points not yet
// credited) reconciles the lagging effects without double-applying any.
// Errors from any stage are surfaced, never swallowed — the completion
// itself stays recorded and the caller retries safely.
func (e *Engine) CompleteStep(ctx context.Context, userID, stepID string) (*CompletionResult, error) {
	step, err := e.store.GetStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	isNew, err := e.ledger.Record(ctx, userID, stepID)
	if err != nil {
		return nil, err
	}

	prog, err := e.progress.Recompute(ctx, userID, step.ProjectTemplateID)
	if err != nil {
		return nil, err
	}

	_, issuedNow, err := e.certs.Evaluate(ctx, userID, step.ProjectTemplateID)
	if err != nil {
		return nil, err
	}

	pts, err := e.points.AwardForStep(ctx, userID, stepID)
	if err != nil {
		return nil, err
	}

	streak, err := e.streaks.Touch(ctx, userID, e.now())
	if err != nil {
		return nil, err
	}

	unlocked, err := e.badges.Evaluate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if isNew {
		log.Printf("✅ Step completed: user=%s step=%s project=%s progress=%d%% points=%d streak=%d",
			userID, stepID, step.ProjectTemplateID, prog.Percentage, pts.TotalPoints, streak.CurrentStreak)
	}

	return &CompletionResult{
		AlreadyCompleted:    !isNew,
		ProgressPercentage:  prog.Percentage,
		CertificateIssued:   issuedNow,
		PointsAwarded:       pts.Awarded,
		TotalPoints:         pts.TotalPoints,
		LeveledUp:           pts.LeveledUp,
		CurrentStreak:       streak.CurrentStreak,
		NewlyUnlockedBadges: unlocked,
	}, nil
}

// RecordQuizAttempt appends to the attempt history. Failed attempts are
// recorded too; they just never reach the completion pipeline.
func (e *Engine) RecordQuizAttempt(ctx context.Context, userID, stepID string, score, timeSpentSeconds int, passed bool) error {
	prior, err := e.store.CountQuizAttempts(ctx, userID, stepID)
	if err != nil {
		return err
	}
	return e.store.CreateQuizAttempt(ctx, &models.QuizAttempt{
		UserID:           userID,
		StepID:           stepID,
		Score:            score,
		Passed:           passed,
		TimeSpentSeconds: timeSpentSeconds,
		AttemptNumber:    int(prior) + 1,
	})
}
