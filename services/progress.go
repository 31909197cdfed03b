package services

import (
	"context"
	"math"

	"tutorial-progress-system/models"
	"tutorial-progress-system/storage"
)

// ProgressCalculator derives a project's completion percentage from the
// completion ledger and the project's step list.
type ProgressCalculator struct {
	store storage.Store
}

func NewProgressCalculator(store storage.Store) *ProgressCalculator {
	return &ProgressCalculator{store: store}
}

// Recompute counts the user's completed steps against the project's own step
// list (never the global completion table) and persists the derived
// percentage and status. It is pure given its inputs: the same completed set
// always yields the same row, regardless of call order or time.
func (c *ProgressCalculator) Recompute(ctx context.Context, userID, projectID string) (*models.ProjectProgress, error) {
	steps, err := c.store.GetProjectSteps(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, &storage.NotFoundError{Kind: "project", ID: projectID}
	}

	completedIDs, err := c.store.CompletedStepIDs(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	// Count membership explicitly; the ledger may hold completions for steps
	// a later content sync removed from the project.
	inProject := make(map[string]bool, len(steps))
	for _, st := range steps {
		inProject[st.ID] = true
	}
	done := 0
	for _, id := range completedIDs {
		if inProject[id] {
			done++
		}
	}

	pct := int(math.Round(float64(done) / float64(len(steps)) * 100))
	if pct < 0 || pct > 100 {
		return nil, invariantf("percentage %d out of range for project %s (done=%d total=%d)",
			pct, projectID, done, len(steps))
	}

	return c.store.MutateProgress(ctx, userID, projectID, func(p *models.ProjectProgress) error {
		p.CompletedSteps = done
		p.Percentage = pct
		switch {
		case pct == 100:
			p.Status = models.StatusCompleted
		case done > 0:
			p.Status = models.StatusInProgress
		default:
			p.Status = models.StatusNotStarted
		}
		return nil
	})
}

// Start marks a project as explicitly started without completing any step.
func (c *ProgressCalculator) Start(ctx context.Context, userID, projectID string) (*models.ProjectProgress, error) {
	if _, err := c.store.GetProjectTemplate(ctx, projectID); err != nil {
		return nil, err
	}
	return c.store.MutateProgress(ctx, userID, projectID, func(p *models.ProjectProgress) error {
		if p.Status == models.StatusNotStarted {
			p.Status = models.StatusInProgress
		}
		return nil
	})
}
