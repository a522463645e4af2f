package services

import (
	"testing"
	"time"

	"rewards-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func day(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func recordStreak(t *testing.T, s *testStack, profile *models.RewardProfile, at time.Time) *models.StreakUpdated {
	t.Helper()
	var event *models.StreakUpdated
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var e error
		event, e = s.Streaks.RecordActivity(tx, profile, at)
		return e
	})
	require.NoError(t, err)
	return event
}

func TestStreakFirstActivityStartsAtOne(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)

	event := recordStreak(t, s, profile, day(2026, 8, 1, 10))
	require.NotNil(t, event)
	assert.Equal(t, 0, event.PreviousStreak)
	assert.Equal(t, 1, event.CurrentStreak)
	assert.True(t, event.IsNewRecord)
	assert.False(t, event.WasBroken)
}

func TestStreakSameDayIsNoOp(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)

	recordStreak(t, s, profile, day(2026, 8, 1, 9))
	event := recordStreak(t, s, profile, day(2026, 8, 1, 18))
	assert.Nil(t, event)
	assert.Equal(t, 1, profile.CurrentStreak)
}

func TestStreakNextDayIncrements(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)

	recordStreak(t, s, profile, day(2026, 8, 1, 23))
	event := recordStreak(t, s, profile, day(2026, 8, 2, 1))
	require.NotNil(t, event)
	assert.Equal(t, 2, event.CurrentStreak)
	assert.False(t, event.WasBroken)
}

func TestStreakGapResetsToOne(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)

	recordStreak(t, s, profile, day(2026, 8, 1, 10))
	recordStreak(t, s, profile, day(2026, 8, 2, 10))
	event := recordStreak(t, s, profile, day(2026, 8, 5, 10))
	require.NotNil(t, event)
	assert.Equal(t, 2, event.PreviousStreak)
	assert.Equal(t, 1, event.CurrentStreak)
	assert.True(t, event.WasBroken)
	assert.Equal(t, 2, profile.LongestStreak)
}

func TestStreakGraceHoursSaveTheStreak(t *testing.T) {
	s := newTestStack(t)
	s.Streaks.Config.StreakGraceHours = 6
	profile := s.createProfile(t, "u1", 0)

	recordStreak(t, s, profile, day(2026, 8, 1, 10))
	// Two calendar days later but inside the 48h+6h grace deadline.
	event := recordStreak(t, s, profile, day(2026, 8, 3, 4))
	require.NotNil(t, event)
	assert.Equal(t, 2, event.CurrentStreak)
	assert.False(t, event.WasBroken)

	// Past the deadline the streak still breaks.
	event = recordStreak(t, s, profile, day(2026, 8, 6, 10))
	require.NotNil(t, event)
	assert.Equal(t, 1, event.CurrentStreak)
	assert.True(t, event.WasBroken)
}

func TestStreakMilestoneFlag(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)

	var event *models.StreakUpdated
	for i := 0; i < 7; i++ {
		event = recordStreak(t, s, profile, day(2026, 8, 1+i, 10))
	}
	require.NotNil(t, event)
	assert.Equal(t, 7, event.CurrentStreak)
	assert.True(t, event.IsMilestone)
	assert.True(t, event.IsNewRecord)
}

func TestStreakLongestSurvivesReset(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)

	for i := 0; i < 5; i++ {
		recordStreak(t, s, profile, day(2026, 8, 1+i, 10))
	}
	recordStreak(t, s, profile, day(2026, 8, 20, 10))

	assert.Equal(t, 1, profile.CurrentStreak)
	assert.Equal(t, 5, profile.LongestStreak)

	// Rebuilding to 3 is not a new record.
	recordStreak(t, s, profile, day(2026, 8, 21, 10))
	event := recordStreak(t, s, profile, day(2026, 8, 22, 10))
	require.NotNil(t, event)
	assert.False(t, event.IsNewRecord)
}

func TestStreakBackdatedActivityIsNoOp(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)

	recordStreak(t, s, profile, day(2026, 8, 1, 10))
	recordStreak(t, s, profile, day(2026, 8, 2, 10))
	recordStreak(t, s, profile, day(2026, 8, 3, 10))
	require.Equal(t, 3, profile.CurrentStreak)

	// A replayed activity dated before the last counted day must not touch
	// the streak, whatever the grace setting.
	event := recordStreak(t, s, profile, day(2026, 8, 2, 15))
	assert.Nil(t, event)
	assert.Equal(t, 3, profile.CurrentStreak)
	assert.Equal(t, day(2026, 8, 3, 10), profile.StreakUpdatedAt.UTC())

	s.Streaks.Config.StreakGraceHours = 6
	event = recordStreak(t, s, profile, day(2026, 7, 20, 9))
	assert.Nil(t, event)
	assert.Equal(t, 3, profile.CurrentStreak)
}

func TestStreakBonusTiers(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 0.0, cfg.StreakBonus(3))
	assert.Equal(t, 0.10, cfg.StreakBonus(7))
	assert.Equal(t, 0.10, cfg.StreakBonus(13))
	assert.Equal(t, 0.20, cfg.StreakBonus(14))
	assert.Equal(t, 0.50, cfg.StreakBonus(90))
}
