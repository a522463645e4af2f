package services

import (
	"testing"
	"time"

	"rewards-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessActivityCreditsPointsXPAndStreak(t *testing.T) {
	s := newTestStack(t)

	result, err := s.Activities.ProcessActivity("u1", "lead_converted", map[string]any{"lead_id": "L-1"}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 50, result.PointsAwarded)
	assert.Equal(t, 40, result.XPAwarded)
	assert.Equal(t, 0.0, result.StreakBonus)

	profile, err := s.Profiles.GetByUserID("u1")
	require.NoError(t, err)
	assert.Equal(t, 50, profile.TotalPoints)
	assert.Equal(t, 40, profile.ExperiencePoints)
	assert.Equal(t, 1, profile.Level)
	assert.Equal(t, 1, profile.CurrentStreak)
	require.NotNil(t, profile.LastActivityAt)
}

func TestProcessActivityLevelsUpAcrossCalls(t *testing.T) {
	s := newTestStack(t)

	// Two conversions and one disbursement: 40 + 40 + 80 = 160 XP, which
	// clears the 100 XP level-1 threshold once.
	now := time.Now()
	_, err := s.Activities.ProcessActivity("u1", "lead_converted", nil, now)
	require.NoError(t, err)
	_, err = s.Activities.ProcessActivity("u1", "lead_converted", nil, now)
	require.NoError(t, err)
	result, err := s.Activities.ProcessActivity("u1", "credit_disbursed", nil, now)
	require.NoError(t, err)

	require.Len(t, result.LevelUps, 1)
	assert.Equal(t, 2, result.LevelUps[0].NewLevel)

	profile, err := s.Profiles.GetByUserID("u1")
	require.NoError(t, err)
	assert.Equal(t, 2, profile.Level)
	assert.Equal(t, 60, profile.ExperiencePoints)
}

func TestProcessActivityUnknownTypeUsesDefaultRule(t *testing.T) {
	s := newTestStack(t)

	result, err := s.Activities.ProcessActivity("u1", "did_something_odd", nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, DefaultRule.Points, result.PointsAwarded)
	assert.Equal(t, DefaultRule.XP, result.XPAwarded)
}

func TestProcessActivityAppliesStreakBonus(t *testing.T) {
	s := newTestStack(t)

	profile, err := s.Profiles.GetOrCreate("u1")
	require.NoError(t, err)

	// Pretend the user already has a 7-day streak as of yesterday.
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	require.NoError(t, s.DB.Model(&models.RewardProfile{}).Where("id = ?", profile.ID).
		Updates(map[string]any{
			"current_streak":    7,
			"longest_streak":    7,
			"streak_updated_at": yesterday,
		}).Error)

	result, err := s.Activities.ProcessActivity("u1", "client_meeting", nil, time.Now())
	require.NoError(t, err)

	// Streak advanced to 8 before crediting: 10 * 1.10 = 11.
	assert.Equal(t, 0.10, result.StreakBonus)
	assert.Equal(t, 11, result.PointsAwarded)
	assert.Equal(t, 8, result.Profile.CurrentStreak)
}

func TestProcessActivityTriggersBadgesAndChallenges(t *testing.T) {
	s := newTestStack(t)

	seedBadge(t, s, models.Badge{
		Name:         "Welcome",
		CriteriaType: "first_activity",
	})
	challenge := seedChallenge(t, s, models.Challenge{
		Name:       "Meet Clients",
		Objectives: []models.Objective{{ActivityType: "client_meeting", Target: 2}},
	})

	profile, err := s.Profiles.GetOrCreate("u1")
	require.NoError(t, err)
	participation, err := s.Challenges.Join(profile, challenge.ID)
	require.NoError(t, err)

	result, err := s.Activities.ProcessActivity("u1", "client_meeting", nil, time.Now())
	require.NoError(t, err)

	require.Len(t, result.BadgesEarned, 1)
	assert.Equal(t, "Welcome", result.BadgesEarned[0].Name)

	var reloaded models.ChallengeParticipation
	require.NoError(t, s.DB.Where("id = ?", participation.ID).First(&reloaded).Error)
	assert.Equal(t, 1, reloaded.Progress[0].Current)
}

func TestProcessActivityRecordsActivityEvent(t *testing.T) {
	s := newTestStack(t)

	_, err := s.Activities.ProcessActivity("u1", "document_uploaded", map[string]any{"doc": "d1"}, time.Now())
	require.NoError(t, err)

	profile, err := s.Profiles.GetByUserID("u1")
	require.NoError(t, err)

	history, err := s.Activities.History(profile.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "document_uploaded", history[0].ActivityType)
	assert.Equal(t, "d1", history[0].Payload["doc"])
}

func TestProcessActivityPublishesEvents(t *testing.T) {
	s := newTestStack(t)

	var names []models.EventName
	s.Events.Subscribe(func(name models.EventName, userID string, payload map[string]any) {
		names = append(names, name)
	})

	_, err := s.Activities.ProcessActivity("u1", "credit_disbursed", nil, time.Now())
	require.NoError(t, err)

	assert.Contains(t, names, models.EventPointsEarned)
	assert.Contains(t, names, models.EventStreakUpdated)
}

func TestProfileGetOrCreateIsStable(t *testing.T) {
	s := newTestStack(t)

	first, err := s.Profiles.GetOrCreate("u1")
	require.NoError(t, err)
	second, err := s.Profiles.GetOrCreate("u1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, first.Level)
}
