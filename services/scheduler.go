package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartStreakMaintenance runs the daily lapsed-streak sweep so that a user
// who stopped showing up reads as streak 0 without waiting for their next
// completion. Returns the scheduler so main can shut it down.
func StartStreakMaintenance(engine *Engine) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			n, err := engine.Streaks().ResetLapsed(ctx, time.Now())
			if err != nil {
				log.Printf("[SCHEDULER] ❌ lapsed streak sweep failed: %v", err)
				return
			}
			if n > 0 {
				log.Printf("[SCHEDULER] ✅ reset %d lapsed streak(s)", n)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	log.Println("✅ Streak maintenance scheduler running (daily at 00:05)")
	return sched, nil
}
