package services

import (
	"testing"

	"rewards-engine/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBadge(t *testing.T, s *testStack, badge models.Badge) *models.Badge {
	t.Helper()
	if badge.ID == "" {
		badge.ID = uuid.NewString()
	}
	if badge.Slug == "" {
		badge.Slug = badge.ID
	}
	badge.IsActive = true
	require.NoError(t, s.DB.Create(&badge).Error)
	return &badge
}

func TestBadgeGrantIsIdempotent(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)
	badge := seedBadge(t, s, models.Badge{
		Name:         "First Deal",
		CriteriaType: "first_activity",
		PointsReward: 50,
		XPReward:     25,
	})

	_, fresh, err := s.Badges.Grant(profile, badge, nil)
	require.NoError(t, err)
	assert.True(t, fresh)

	_, fresh, err = s.Badges.Grant(profile, badge, nil)
	require.NoError(t, err)
	assert.False(t, fresh)

	// Rewards credited exactly once.
	reloaded, err := s.Profiles.GetByUserID("u1")
	require.NoError(t, err)
	assert.Equal(t, 50, reloaded.TotalPoints)
	assert.Equal(t, 25, reloaded.ExperiencePoints)

	var count int64
	require.NoError(t, s.DB.Model(&models.UserBadge{}).
		Where("reward_profile_id = ?", profile.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestBadgeEvaluatePointsTotal(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 120)
	seedBadge(t, s, models.Badge{
		Name:           "Century",
		CriteriaType:   "points_total",
		CriteriaConfig: map[string]any{"threshold": 100},
	})
	seedBadge(t, s, models.Badge{
		Name:           "High Roller",
		CriteriaType:   "points_total",
		CriteriaConfig: map[string]any{"threshold": 1000},
	})

	granted, err := s.Badges.Evaluate(profile, ActivityContext{ActivityType: "lead_created"})
	require.NoError(t, err)
	require.Len(t, granted, 1)
	assert.Equal(t, "Century", granted[0].Name)
}

func TestBadgeEvaluateSkipsUnknownCriteria(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)
	seedBadge(t, s, models.Badge{
		Name:         "Mystery",
		CriteriaType: "phases_of_the_moon",
	})

	granted, err := s.Badges.Evaluate(profile, ActivityContext{ActivityType: "lead_created"})
	require.NoError(t, err)
	assert.Empty(t, granted)
}

func TestBadgeEvaluateActivityCount(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)
	seedBadge(t, s, models.Badge{
		Name:         "Meeting Machine",
		CriteriaType: "activity_count",
		CriteriaConfig: map[string]any{
			"activity_type": "client_meeting",
			"count":         3,
		},
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, s.DB.Create(&models.ActivityEvent{
			ID:              uuid.NewString(),
			RewardProfileID: profile.ID,
			UserID:          profile.UserID,
			ActivityType:    "client_meeting",
		}).Error)
	}

	granted, err := s.Badges.Evaluate(profile, ActivityContext{ActivityType: "client_meeting"})
	require.NoError(t, err)
	require.Len(t, granted, 1)
	assert.Equal(t, "Meeting Machine", granted[0].Name)
}

func TestBadgeEvaluateNeverRegrants(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 200)
	seedBadge(t, s, models.Badge{
		Name:           "Century",
		CriteriaType:   "points_total",
		CriteriaConfig: map[string]any{"threshold": 100},
	})

	granted, err := s.Badges.Evaluate(profile, ActivityContext{ActivityType: "x"})
	require.NoError(t, err)
	require.Len(t, granted, 1)

	granted, err = s.Badges.Evaluate(profile, ActivityContext{ActivityType: "x"})
	require.NoError(t, err)
	assert.Empty(t, granted)
}

func TestBadgeListAvailableHidesUnearnedSecrets(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)
	visible := seedBadge(t, s, models.Badge{
		Name:         "Visible",
		CriteriaType: "first_activity",
	})
	secret := seedBadge(t, s, models.Badge{
		Name:         "Secret",
		CriteriaType: "first_activity",
		IsSecret:     true,
	})

	badges, err := s.Badges.ListAvailable(profile.ID)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, visible.ID, badges[0].ID)

	// Earned secrets become visible.
	_, _, err = s.Badges.Grant(profile, secret, nil)
	require.NoError(t, err)

	badges, err = s.Badges.ListAvailable(profile.ID)
	require.NoError(t, err)
	assert.Len(t, badges, 2)
}

func TestBadgeGrantPublishesEvents(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)
	badge := seedBadge(t, s, models.Badge{
		Name:         "First Deal",
		CriteriaType: "first_activity",
		PointsReward: 50,
	})

	var names []models.EventName
	s.Events.Subscribe(func(name models.EventName, userID string, payload map[string]any) {
		names = append(names, name)
	})

	_, _, err := s.Badges.Grant(profile, badge, nil)
	require.NoError(t, err)
	assert.Contains(t, names, models.EventBadgeEarned)
	assert.Contains(t, names, models.EventPointsEarned)
}
