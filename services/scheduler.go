package services

import (
	"log"
	"time"

	"rewards-engine/models"

	"github.com/go-co-op/gocron/v2"
)

// StartRebuildScheduler runs periodic leaderboard rebuilds: frequent for the
// short windows, slower for the long ones. Returns the scheduler so main can
// shut it down.
func (s *LeaderboardService) StartRebuildScheduler() gocron.Scheduler {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("[Scheduler] failed to create scheduler: %v", err)
		return nil
	}
	sched.Start()

	rebuild := func(period models.LeaderboardPeriod) func() {
		return func() {
			s.RebuildActive(&period)
		}
	}

	// Daily boards track today's activity; keep them fresh.
	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(rebuild(models.PeriodDaily)),
	)
	_, _ = sched.NewJob(
		gocron.DurationJob(15*time.Minute),
		gocron.NewTask(rebuild(models.PeriodWeekly)),
	)
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(rebuild(models.PeriodMonthly)),
	)
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(rebuild(models.PeriodAllTime)),
	)

	log.Println("[Scheduler] leaderboard rebuild jobs started")
	return sched
}
