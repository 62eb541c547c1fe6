// services/scheduler.go
package services

import (
	"log"
	"time"

	"squad-clash-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartLifecycleScheduler runs the periodic sweeps the core itself never
// schedules: opening and closing due events, finalizing closed ones, expiring
// challenges, weekly point resets and daily strike decay. Every job only
// calls operations that are safe under repeated invocation, so overlapping
// or missed ticks cannot corrupt anything.
func StartLifecycleScheduler(events *EventService, stats *StatsService, judges *JudgeService) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	// Every minute: advance due events through open → closed → finalized.
	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			now := events.Clock.Now()

			var due []models.DailyEvent
			if err := events.DB.Where("status = ? AND open_at <= ?", models.EventScheduled, now).
				Find(&due).Error; err != nil {
				log.Printf("[SCHEDULER] DB error listing due opens: %v", err)
			}
			for _, e := range due {
				if _, err := events.OpenEvent(e.ID); err != nil {
					log.Printf("[SCHEDULER] failed to open event %s: %v", e.ID, err)
				}
			}

			var closing []models.DailyEvent
			if err := events.DB.Where("status = ? AND close_at <= ?", models.EventOpen, now).
				Find(&closing).Error; err != nil {
				log.Printf("[SCHEDULER] DB error listing due closes: %v", err)
			}
			for _, e := range closing {
				if _, err := events.CloseEvent(e.ID); err != nil {
					log.Printf("[SCHEDULER] failed to close event %s: %v", e.ID, err)
					continue
				}
				if _, err := events.FinalizeEvent(e.ID); err != nil {
					log.Printf("[SCHEDULER] failed to finalize event %s: %v", e.ID, err)
				}
			}

			if n, err := judges.ExpireChallenges(); err != nil {
				log.Printf("[SCHEDULER] failed to expire challenges: %v", err)
			} else if n > 0 {
				log.Printf("[SCHEDULER] resolved %d past-deadline challenges", n)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	// Daily: strikes decay by one.
	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(func() {
			if n, err := stats.DecayStrikes(); err != nil {
				log.Printf("[SCHEDULER] strike decay failed: %v", err)
			} else {
				log.Printf("[SCHEDULER] decayed strikes for %d members", n)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	// Weekly (Monday 00:05 UTC): weekly points reset.
	_, err = sched.NewJob(
		gocron.WeeklyJob(1, gocron.NewWeekdays(time.Monday), gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(func() {
			if n, err := stats.ResetWeekly(); err != nil {
				log.Printf("[SCHEDULER] weekly reset failed: %v", err)
			} else {
				log.Printf("[SCHEDULER] reset weekly points for %d members", n)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
