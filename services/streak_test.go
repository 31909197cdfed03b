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

func seedStreakUser(t *testing.T, store *memstore.Store, current, longest int, lastActive *time.Time) {
	t.Helper()
	seedUser(t, store, "u1")
	_, err := store.MutateUser(context.Background(), "u1", func(u *models.User) error {
		u.CurrentStreak = current
		u.LongestStreak = longest
		u.LastActiveAt = lastActive
		return nil
	})
	require.NoError(t, err)
}

func TestStreakTouch(t *testing.T) {
	jan10 := time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name        string
		lastActive  *time.Time
		current     int
		longest     int
		touchAt     time.Time
		wantCurrent int
		wantLongest int
	}{
		{
			name:        "first ever activity",
			lastActive:  nil,
			touchAt:     jan10,
			wantCurrent: 1,
			wantLongest: 1,
		},
		{
			name:        "same day repeat",
			lastActive:  &jan10,
			current:     5,
			longest:     5,
			touchAt:     time.Date(2024, 1, 10, 23, 0, 0, 0, time.UTC),
			wantCurrent: 5,
			wantLongest: 5,
		},
		{
			name:        "next day extends",
			lastActive:  &jan10,
			current:     5,
			longest:     5,
			touchAt:     time.Date(2024, 1, 11, 1, 0, 0, 0, time.UTC),
			wantCurrent: 6,
			wantLongest: 6,
		},
		{
			name:        "gap breaks streak",
			lastActive:  &jan10,
			current:     5,
			longest:     9,
			touchAt:     time.Date(2024, 1, 13, 12, 0, 0, 0, time.UTC),
			wantCurrent: 1,
			wantLongest: 9,
		},
		{
			name:        "longest preserved on extend",
			lastActive:  &jan10,
			current:     2,
			longest:     9,
			touchAt:     time.Date(2024, 1, 11, 12, 0, 0, 0, time.UTC),
			wantCurrent: 3,
			wantLongest: 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.New()
			seedStreakUser(t, store, tt.current, tt.longest, tt.lastActive)
			engine := NewStreakEngine(store, StreakConfig{})

			res, err := engine.Touch(context.Background(), "u1", tt.touchAt)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCurrent, res.CurrentStreak)
			assert.Equal(t, tt.wantLongest, res.LongestStreak)

			// LastActiveAt is persisted unconditionally, same-day repeats included.
			user, err := store.GetUser(context.Background(), "u1")
			require.NoError(t, err)
			require.NotNil(t, user.LastActiveAt)
			assert.True(t, user.LastActiveAt.Equal(tt.touchAt))
		})
	}
}

func TestStreakBackdatedTouch(t *testing.T) {
	jan10 := time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)
	jan8 := time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)

	t.Run("default policy is no-op", func(t *testing.T) {
		store := memstore.New()
		seedStreakUser(t, store, 5, 5, &jan10)
		engine := NewStreakEngine(store, StreakConfig{})

		res, err := engine.Touch(context.Background(), "u1", jan8)
		require.NoError(t, err)
		assert.Equal(t, 5, res.CurrentStreak, "out-of-order events must not corrupt the streak")
	})

	t.Run("configured to reset", func(t *testing.T) {
		store := memstore.New()
		seedStreakUser(t, store, 5, 5, &jan10)
		engine := NewStreakEngine(store, StreakConfig{BackdatedResets: true})

		res, err := engine.Touch(context.Background(), "u1", jan8)
		require.NoError(t, err)
		assert.Equal(t, 1, res.CurrentStreak)
	})
}

func TestStreakAcrossDayBoundaryTimes(t *testing.T) {
	// 23:59 then 00:01 the next day is still consecutive.
	store := memstore.New()
	lateNight := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)
	seedStreakUser(t, store, 3, 3, &lateNight)
	engine := NewStreakEngine(store, StreakConfig{})

	res, err := engine.Touch(context.Background(), "u1", time.Date(2024, 3, 2, 0, 1, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 4, res.CurrentStreak)
}

func TestResetLapsed(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	twoDaysAgo := time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC)
	yesterday := time.Date(2024, 5, 9, 12, 0, 0, 0, time.UTC)
	now := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

	for id, last := range map[string]time.Time{"lapsed": twoDaysAgo, "active": yesterday} {
		require.NoError(t, store.UpsertUserIdentity(ctx, &models.User{ExternalUserID: id, Username: id}))
		last := last
		_, err := store.MutateUser(ctx, id, func(u *models.User) error {
			u.CurrentStreak = 4
			u.LongestStreak = 4
			u.LastActiveAt = &last
			return nil
		})
		require.NoError(t, err)
	}

	engine := NewStreakEngine(store, StreakConfig{})
	n, err := engine.ResetLapsed(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	lapsed, _ := store.GetUser(ctx, "lapsed")
	active, _ := store.GetUser(ctx, "active")
	assert.Equal(t, 0, lapsed.CurrentStreak)
	assert.Equal(t, 4, lapsed.LongestStreak, "longest streak survives the sweep")
	assert.Equal(t, 4, active.CurrentStreak)
}
