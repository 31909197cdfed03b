package services

import (
	"context"
	"testing"

	"tutorial-progress-system/models"
	"tutorial-progress-system/storage/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwardForStep(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	seedUser(t, store, "u1")

	ledger := NewPointsLedger(store)

	res, err := ledger.AwardForStep(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, PointsPerStep, res.Awarded)
	assert.Equal(t, PointsPerStep, res.TotalPoints)
	assert.Equal(t, 1, res.Level)
	assert.False(t, res.LeveledUp)

	// Same step again: no-op, totals unchanged.
	res, err = ledger.AwardForStep(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Zero(t, res.Awarded)
	assert.Equal(t, PointsPerStep, res.TotalPoints)

	// A different step credits again.
	res, err = ledger.AwardForStep(ctx, "u1", "s2")
	require.NoError(t, err)
	assert.Equal(t, PointsPerStep, res.Awarded)
	assert.Equal(t, 2*PointsPerStep, res.TotalPoints)
}

func TestAwardForStepLevelUp(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	seedUser(t, store, "u1")
	_, err := store.MutateUser(ctx, "u1", func(u *models.User) error {
		u.TotalPoints = 950
		u.Level = models.LevelForPoints(950)
		return nil
	})
	require.NoError(t, err)

	res, err := NewPointsLedger(store).AwardForStep(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 1000, res.TotalPoints)
	assert.Equal(t, 2, res.Level)
	assert.True(t, res.LeveledUp)
}

func TestAwardForStepUnknownUser(t *testing.T) {
	store := memstore.New()
	_, err := NewPointsLedger(store).AwardForStep(context.Background(), "ghost", "s1")
	require.Error(t, err)
}

func TestLevelForPoints(t *testing.T) {
	cases := []struct {
		points int
		level  int
	}{
		{0, 1},
		{999, 1},
		{1000, 2},
		{2500, 3},
		{-10, 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.level, models.LevelForPoints(tc.points), "points=%d", tc.points)
	}
}
