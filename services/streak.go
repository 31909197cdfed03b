package services

import (
	"context"
	"time"

	"tutorial-progress-system/models"
	"tutorial-progress-system/storage"
)

// StreakConfig tunes streak behavior.
type StreakConfig struct {
	// BackdatedResets controls what a touch older than the last recorded
	// activity does. Default false: treat it as same-day repeat activity
	// (no-op), so out-of-order or clock-skewed events cannot corrupt a
	// streak. When true such a touch breaks the streak back to 1.
	BackdatedResets bool
}

// StreakResult is the streak state after a touch.
type StreakResult struct {
	CurrentStreak int
	LongestStreak int
}

// StreakEngine maintains the consecutive-calendar-day activity streak.
type StreakEngine struct {
	store storage.Store
	cfg   StreakConfig
}

func NewStreakEngine(store storage.Store, cfg StreakConfig) *StreakEngine {
	return &StreakEngine{store: store, cfg: cfg}
}

// startOfDay truncates t to midnight UTC. All day arithmetic is done in UTC;
// the learner's wall-clock timezone is a presentation concern.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Touch records activity at now and applies the day rules in order:
// no previous activity → 1; same day → unchanged; exactly the next day →
// +1; a gap of more than one day → reset to 1; now before the last activity
// → policy (see StreakConfig). LastActiveAt is persisted unconditionally so
// last-seen stays accurate even on same-day repeats.
func (e *StreakEngine) Touch(ctx context.Context, userID string, now time.Time) (*StreakResult, error) {
	var res StreakResult
	_, err := e.store.MutateUser(ctx, userID, func(u *models.User) error {
		today := startOfDay(now)

		switch {
		case u.LastActiveAt == nil:
			u.CurrentStreak = 1
		default:
			last := startOfDay(*u.LastActiveAt)
			switch {
			case today.Equal(last):
				// same-day repeat, streak unchanged
			case today.Equal(last.AddDate(0, 0, 1)):
				u.CurrentStreak++
			case today.After(last):
				u.CurrentStreak = 1 // missed at least one day
			default: // today < last: backdated or clock skew
				if e.cfg.BackdatedResets {
					u.CurrentStreak = 1
				}
			}
		}

		if u.CurrentStreak > u.LongestStreak {
			u.LongestStreak = u.CurrentStreak
		}
		ts := now
		u.LastActiveAt = &ts

		res.CurrentStreak = u.CurrentStreak
		res.LongestStreak = u.LongestStreak
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ResetLapsed zeroes CurrentStreak for every user with no activity since the
// start of yesterday. Run daily by the scheduler; purely cosmetic, since the
// next Touch of a lapsed user starts over at 1 regardless.
func (e *StreakEngine) ResetLapsed(ctx context.Context, now time.Time) (int64, error) {
	yesterday := startOfDay(now).AddDate(0, 0, -1)
	return e.store.ResetLapsedStreaks(ctx, yesterday)
}
