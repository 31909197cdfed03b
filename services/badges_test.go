package services

import (
	"context"
	"testing"
	"time"

	"tutorial-progress-system/models"
	"tutorial-progress-system/storage/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgeUnlockedExactlyOnce(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	seedUser(t, store, "u1")
	require.NoError(t, store.SeedBadges(ctx, []models.Badge{{
		Name:         "First Step",
		CriteriaType: models.CriteriaPoints,
		Threshold:    50,
	}}))

	_, err := store.MutateUser(ctx, "u1", func(u *models.User) error {
		u.TotalPoints = 50
		return nil
	})
	require.NoError(t, err)

	eval := NewBadgeEvaluator(store)

	unlocked, err := eval.Evaluate(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "First Step", unlocked[0].Name)

	again, err := eval.Evaluate(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, again, "second evaluation after crossing the threshold unlocks nothing")
}

func TestBadgeCriteriaTypes(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	seedUser(t, store, "u1")
	require.NoError(t, store.SeedBadges(ctx, []models.Badge{
		{Name: "Points", CriteriaType: models.CriteriaPoints, Threshold: 100},
		{Name: "Streak", CriteriaType: models.CriteriaStreak, Threshold: 7},
		{Name: "Projects", CriteriaType: models.CriteriaProjects, Threshold: 1},
	}))

	eval := NewBadgeEvaluator(store)

	unlocked, err := eval.Evaluate(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, unlocked, "fresh user satisfies nothing")

	_, err = store.MutateUser(ctx, "u1", func(u *models.User) error {
		u.TotalPoints = 150
		u.CurrentStreak = 7
		return nil
	})
	require.NoError(t, err)

	unlocked, err = eval.Evaluate(ctx, "u1")
	require.NoError(t, err)
	names := badgeNames(unlocked)
	assert.ElementsMatch(t, []string{"Points", "Streak"}, names)

	// Complete one project (via the progress table the evaluator counts).
	_, err = store.MutateProgress(ctx, "u1", "p1", func(p *models.ProjectProgress) error {
		p.Percentage = 100
		p.Status = models.StatusCompleted
		return nil
	})
	require.NoError(t, err)

	unlocked, err = eval.Evaluate(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Projects"}, badgeNames(unlocked))
}

func TestBadgeStreakThresholdUsesCurrentStreak(t *testing.T) {
	// A longest streak above the threshold does not qualify once the
	// current streak has lapsed.
	store := memstore.New()
	ctx := context.Background()
	seedUser(t, store, "u1")
	require.NoError(t, store.SeedBadges(ctx, []models.Badge{
		{Name: "Week Warrior", CriteriaType: models.CriteriaStreak, Threshold: 7},
	}))
	_, err := store.MutateUser(ctx, "u1", func(u *models.User) error {
		u.CurrentStreak = 2
		u.LongestStreak = 10
		return nil
	})
	require.NoError(t, err)

	unlocked, err := NewBadgeEvaluator(store).Evaluate(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, unlocked)
}

func TestDefaultBadgeCatalogSeeds(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	require.NoError(t, store.SeedBadges(ctx, models.DefaultBadges))
	// Seeding twice must not duplicate.
	require.NoError(t, store.SeedBadges(ctx, models.DefaultBadges))

	badges, err := store.ListBadges(ctx)
	require.NoError(t, err)
	assert.Len(t, badges, len(models.DefaultBadges))
}

func badgeNames(badges []models.Badge) []string {
	names := make([]string, 0, len(badges))
	for _, b := range badges {
		names = append(names, b.Name)
	}
	return names
}

func TestBadgeUnlockVisibleToStream(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	seedUser(t, store, "u1")
	require.NoError(t, store.SeedBadges(ctx, []models.Badge{{
		Name:         "First Step",
		CriteriaType: models.CriteriaPoints,
		Threshold:    10,
	}}))
	_, err := store.MutateUser(ctx, "u1", func(u *models.User) error {
		u.TotalPoints = 10
		return nil
	})
	require.NoError(t, err)

	cursor := time.Now().Add(-time.Second)
	_, err = NewBadgeEvaluator(store).Evaluate(ctx, "u1")
	require.NoError(t, err)

	since, err := store.UserBadgesSince(ctx, "u1", cursor)
	require.NoError(t, err)
	assert.Len(t, since, 1)
}
