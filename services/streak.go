package services

import (
	"time"

	"rewards-engine/models"

	"gorm.io/gorm"
)

// StreakService maintains consecutive-activity-day counters.
//
// Day-boundary policy: calendar days in UTC. Activity on the same calendar
// day as the last counted one is a no-op; activity on the next calendar day
// increments the streak; anything later than the next day plus the configured
// grace slack breaks it and restarts at 1. (Calendar-day semantics chosen
// over rolling-24h; the boundary is explicit and testable.)
type StreakService struct {
	DB     *gorm.DB
	Events *EventService
	Config Config
}

func NewStreakService(db *gorm.DB, events *EventService, cfg Config) *StreakService {
	return &StreakService{DB: db, Events: events, Config: cfg}
}

// RecordActivity updates the profile's streak counters for an activity at the
// given time. The profile row must already be locked by the caller's
// transaction; tx is that transaction. Returns the event to publish after
// commit, or nil for a same-day no-op.
func (s *StreakService) RecordActivity(tx *gorm.DB, profile *models.RewardProfile, at time.Time) (*models.StreakUpdated, error) {
	at = at.UTC()
	previous := profile.CurrentStreak
	previousLongest := profile.LongestStreak
	wasBroken := false

	switch {
	case profile.StreakUpdatedAt == nil:
		profile.CurrentStreak = 1
	default:
		last := profile.StreakUpdatedAt.UTC()
		switch gap := dayGap(last, at); {
		case gap <= 0:
			// Already counted today. Backdated replays (gap < 0) land here
			// too; they can never break or advance an established streak.
			return nil, nil
		case gap == 1:
			profile.CurrentStreak++
		default:
			if withinGrace(last, at, s.Config.StreakGraceHours) {
				profile.CurrentStreak++
			} else {
				profile.CurrentStreak = 1
				wasBroken = previous > 0
			}
		}
	}

	if profile.CurrentStreak > profile.LongestStreak {
		profile.LongestStreak = profile.CurrentStreak
	}
	profile.StreakUpdatedAt = &at

	if err := tx.Model(&models.RewardProfile{}).
		Where("id = ?", profile.ID).
		Updates(map[string]any{
			"current_streak":    profile.CurrentStreak,
			"longest_streak":    profile.LongestStreak,
			"streak_updated_at": at,
		}).Error; err != nil {
		return nil, err
	}

	return &models.StreakUpdated{
		UserID:         profile.UserID,
		PreviousStreak: previous,
		CurrentStreak:  profile.CurrentStreak,
		IsMilestone:    models.IsStreakMilestone(profile.CurrentStreak),
		WasBroken:      wasBroken,
		IsNewRecord:    profile.CurrentStreak > previousLongest,
	}, nil
}

// Publish emits a StreakUpdated event produced by RecordActivity.
func (s *StreakService) Publish(event *models.StreakUpdated) {
	if event == nil {
		return
	}
	s.Events.Publish(models.EventStreakUpdated, event.UserID, *event)
}

// dayGap counts calendar-day boundaries (UTC) crossed between two times.
func dayGap(from, to time.Time) int {
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(toDay.Sub(fromDay).Hours() / 24)
}

// withinGrace allows a streak to survive slightly past the next-day boundary
// when a grace window is configured.
func withinGrace(last, at time.Time, graceHours int) bool {
	if graceHours <= 0 {
		return false
	}
	// End of the day after the last counted day, plus slack.
	lastDay := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
	deadline := lastDay.Add(48 * time.Hour).Add(time.Duration(graceHours) * time.Hour)
	return at.Before(deadline)
}
