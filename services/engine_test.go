package services

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"tutorial-progress-system/models"
	"tutorial-progress-system/storage"
	"tutorial-progress-system/storage/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	engine := NewEngine(store, nil, StreakConfig{})
	return engine, store
}

func seedUser(t *testing.T, store *memstore.Store, userID string) {
	t.Helper()
	err := store.UpsertUserIdentity(context.Background(), &models.User{
		ExternalUserID: userID,
		Username:       userID,
	})
	require.NoError(t, err)
}

// seedProject creates a project with n steps and returns the step IDs in
// position order.
func seedProject(t *testing.T, store *memstore.Store, projectID string, n int) []string {
	t.Helper()
	steps := make([]models.Step, 0, n)
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		id := projectID + "-step-" + strconv.Itoa(i)
		ids = append(ids, id)
		steps = append(steps, models.Step{
			ID:         id,
			ExternalID: id,
			Position:   i,
			Title:      "Step",
		})
	}
	err := store.UpsertProjectTemplate(context.Background(), &models.ProjectTemplate{
		ID:         projectID,
		ExternalID: projectID,
		Slug:       projectID,
		Title:      "Project " + projectID,
	}, steps)
	require.NoError(t, err)
	return ids
}

func TestCompleteStepIdempotent(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, store, "u1")
	steps := seedProject(t, store, "p1", 4)

	first, err := engine.CompleteStep(ctx, "u1", steps[0])
	require.NoError(t, err)
	assert.False(t, first.AlreadyCompleted)
	assert.Equal(t, PointsPerStep, first.PointsAwarded)
	assert.Equal(t, PointsPerStep, first.TotalPoints)
	assert.Equal(t, 25, first.ProgressPercentage)

	second, err := engine.CompleteStep(ctx, "u1", steps[0])
	require.NoError(t, err)
	assert.True(t, second.AlreadyCompleted)
	assert.Equal(t, 0, second.PointsAwarded)
	assert.Equal(t, first.TotalPoints, second.TotalPoints, "repeat completion must not add points")
	assert.Equal(t, first.ProgressPercentage, second.ProgressPercentage)
}

func TestProgressMonotonic(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, store, "u1")
	steps := seedProject(t, store, "p1", 4)

	prev := 0
	for _, id := range steps {
		res, err := engine.CompleteStep(ctx, "u1", id)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.ProgressPercentage, prev)
		prev = res.ProgressPercentage
	}
	assert.Equal(t, 100, prev)
}

func TestFourStepScenario(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, store, "u1")
	steps := seedProject(t, store, "p1", 4)

	// Single projects-threshold badge so the final step unlocks it.
	require.NoError(t, store.SeedBadges(ctx, []models.Badge{{
		Name:         "Finisher",
		CriteriaType: models.CriteriaProjects,
		Threshold:    1,
	}}))

	var res *CompletionResult
	var err error
	for _, id := range steps[:3] {
		res, err = engine.CompleteStep(ctx, "u1", id)
		require.NoError(t, err)
		assert.False(t, res.CertificateIssued)
	}
	assert.Equal(t, 75, res.ProgressPercentage)

	res, err = engine.CompleteStep(ctx, "u1", steps[3])
	require.NoError(t, err)
	assert.Equal(t, 100, res.ProgressPercentage)
	assert.True(t, res.CertificateIssued)
	require.Len(t, res.NewlyUnlockedBadges, 1)
	assert.Equal(t, "Finisher", res.NewlyUnlockedBadges[0].Name)

	prog, err := store.GetProgress(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, prog.Status)
	assert.True(t, prog.CertificateEligible)
	require.NotNil(t, prog.CertificateIssuedAt)
}

func TestCertificateIssuedOnce(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, store, "u1")
	steps := seedProject(t, store, "p1", 2)

	for _, id := range steps {
		_, err := engine.CompleteStep(ctx, "u1", id)
		require.NoError(t, err)
	}
	prog, err := store.GetProgress(ctx, "u1", "p1")
	require.NoError(t, err)
	require.NotNil(t, prog.CertificateIssuedAt)
	issuedAt := *prog.CertificateIssuedAt

	// Re-submitting a completed step must not re-issue.
	res, err := engine.CompleteStep(ctx, "u1", steps[1])
	require.NoError(t, err)
	assert.False(t, res.CertificateIssued)

	prog, err = store.GetProgress(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.True(t, prog.CertificateIssuedAt.Equal(issuedAt), "issuance timestamp must never change")
}

func TestConcurrentDoubleSubmit(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, store, "u1")
	steps := seedProject(t, store, "p1", 4)

	const callers = 16
	results := make([]*CompletionResult, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.CompleteStep(ctx, "u1", steps[0])
		}(i)
	}
	wg.Wait()

	var newCount, awardCount int
	for i, res := range results {
		require.NoError(t, errs[i])
		if !res.AlreadyCompleted {
			newCount++
		}
		if res.PointsAwarded > 0 {
			awardCount++
		}
	}
	assert.Equal(t, 1, newCount, "exactly one caller records the completion")
	assert.Equal(t, 1, awardCount, "exactly one caller is credited")

	user, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, PointsPerStep, user.TotalPoints, "total reflects exactly one award")
}

func TestConcurrentDistinctStepsNoLostUpdate(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, store, "u1")
	steps := seedProject(t, store, "p1", 4)

	errs := make([]error, len(steps))
	var wg sync.WaitGroup
	for i, id := range steps {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = engine.CompleteStep(ctx, "u1", id)
		}(i, id)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	user, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4*PointsPerStep, user.TotalPoints)

	prog, err := store.GetProgress(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 100, prog.Percentage)
}

func TestCompleteStepUnknownStep(t *testing.T) {
	engine, store := newTestEngine(t)
	seedUser(t, store, "u1")

	_, err := engine.CompleteStep(context.Background(), "u1", "nope")
	assert.True(t, storage.IsNotFound(err))
}

func TestCompleteStepUnknownUser(t *testing.T) {
	engine, store := newTestEngine(t)
	steps := seedProject(t, store, "p1", 1)

	_, err := engine.CompleteStep(context.Background(), "ghost", steps[0])
	assert.True(t, storage.IsNotFound(err))
}

func TestHandleEventValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.HandleEvent(ctx, models.CompletionEvent{Kind: "bogus", UserID: "u1", StepID: "s1"})
	assert.Error(t, err)

	_, err = engine.HandleEvent(ctx, models.CompletionEvent{Kind: models.EventQuizPassed, StepID: "s1"})
	assert.Error(t, err)

	_, err = engine.HandleEvent(ctx, models.CompletionEvent{Kind: models.EventStepMarkedComplete, UserID: "u1"})
	assert.Error(t, err)
}

func TestQuizEventRecordsAttempts(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, store, "u1")
	steps := seedProject(t, store, "p1", 2)

	require.NoError(t, engine.RecordQuizAttempt(ctx, "u1", steps[0], 40, 120, false))

	_, err := engine.HandleEvent(ctx, models.CompletionEvent{
		Kind:   models.EventQuizPassed,
		UserID: "u1",
		StepID: steps[0],
		Score:  90,
	})
	require.NoError(t, err)

	n, err := store.CountQuizAttempts(ctx, "u1", steps[0])
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Attempt history never drives completion: the failed attempt did not
	// count, only the pass did, and the other step is still open.
	prog, err := store.GetProgress(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 50, prog.Percentage)
}

func TestStreakUpdatedOnCompletion(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	seedUser(t, store, "u1")
	steps := seedProject(t, store, "p1", 2)

	day1 := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return day1 }
	res, err := engine.CompleteStep(ctx, "u1", steps[0])
	require.NoError(t, err)
	assert.Equal(t, 1, res.CurrentStreak)

	engine.now = func() time.Time { return day1.AddDate(0, 0, 1) }
	res, err = engine.CompleteStep(ctx, "u1", steps[1])
	require.NoError(t, err)
	assert.Equal(t, 2, res.CurrentStreak)
}
