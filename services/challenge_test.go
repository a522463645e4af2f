package services

import (
	"sync"
	"testing"
	"time"

	"rewards-engine/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedChallenge(t *testing.T, s *testStack, challenge models.Challenge) *models.Challenge {
	t.Helper()
	if challenge.ID == "" {
		challenge.ID = uuid.NewString()
	}
	if challenge.Slug == "" {
		challenge.Slug = challenge.ID
	}
	challenge.IsActive = true
	require.NoError(t, s.DB.Create(&challenge).Error)
	return &challenge
}

func TestChallengeJoinIsIdempotent(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)
	challenge := seedChallenge(t, s, models.Challenge{
		Name:       "Close 3 Deals",
		Objectives: []models.Objective{{Description: "deals", ActivityType: "lead_converted", Target: 3}},
	})

	first, err := s.Challenges.Join(profile, challenge.ID)
	require.NoError(t, err)
	second, err := s.Challenges.Join(profile, challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, s.DB.Model(&models.ChallengeParticipation{}).
		Where("challenge_id = ?", challenge.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestChallengeJoinConcurrentSameUser(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)
	challenge := seedChallenge(t, s, models.Challenge{
		Name:       "Race",
		Objectives: []models.Objective{{Target: 1}},
	})

	// Both racing joins must succeed and converge on one participation row,
	// whichever of them wins the insert.
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.Challenges.Join(profile, challenge.ID)
		}(i)
	}
	wg.Wait()

	assert.NoError(t, results[0])
	assert.NoError(t, results[1])

	var count int64
	require.NoError(t, s.DB.Model(&models.ChallengeParticipation{}).
		Where("challenge_id = ?", challenge.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestChallengeJoinRespectsCapacity(t *testing.T) {
	s := newTestStack(t)
	challenge := seedChallenge(t, s, models.Challenge{
		Name:            "Exclusive",
		Objectives:      []models.Objective{{Target: 1}},
		MaxParticipants: intPtr(1),
	})

	p1 := s.createProfile(t, "u1", 0)
	p2 := s.createProfile(t, "u2", 0)

	_, err := s.Challenges.Join(p1, challenge.ID)
	require.NoError(t, err)

	_, err = s.Challenges.Join(p2, challenge.ID)
	assert.ErrorIs(t, err, ErrChallengeFull)

	// Re-join by an existing participant still succeeds on a full challenge.
	_, err = s.Challenges.Join(p1, challenge.ID)
	assert.NoError(t, err)
}

func TestChallengeJoinRejectsClosedWindow(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)
	past := time.Now().Add(-time.Hour)
	challenge := seedChallenge(t, s, models.Challenge{
		Name:       "Over",
		Objectives: []models.Objective{{Target: 1}},
		EndsAt:     &past,
	})

	_, err := s.Challenges.Join(profile, challenge.ID)
	assert.ErrorIs(t, err, ErrChallengeNotOpen)
}

func TestChallengeCompletionCreditsRewardsOnce(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)
	challenge := seedChallenge(t, s, models.Challenge{
		Name:         "Close 2 Deals",
		Objectives:   []models.Objective{{ActivityType: "lead_converted", Target: 2}},
		PointsReward: 100,
		XPReward:     50,
	})

	participation, err := s.Challenges.Join(profile, challenge.ID)
	require.NoError(t, err)

	var names []models.EventName
	s.Events.Subscribe(func(name models.EventName, userID string, payload map[string]any) {
		names = append(names, name)
	})

	_, err = s.Challenges.UpdateProgress(participation.ID, 0, 1, true)
	require.NoError(t, err)
	updated, err := s.Challenges.UpdateProgress(participation.ID, 0, 1, true)
	require.NoError(t, err)

	assert.Equal(t, models.ParticipationCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)

	reloaded, err := s.Profiles.GetByUserID("u1")
	require.NoError(t, err)
	assert.Equal(t, 100, reloaded.TotalPoints)
	assert.Equal(t, 50, reloaded.ExperiencePoints)
	assert.Contains(t, names, models.EventChallengeCompleted)

	// A completed participation takes no further progress.
	_, err = s.Challenges.UpdateProgress(participation.ID, 0, 1, true)
	assert.ErrorIs(t, err, ErrParticipationClosed)
}

func TestChallengeCompletionGrantsBadgeReward(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)
	badge := seedBadge(t, s, models.Badge{
		Name:         "Challenge Champ",
		CriteriaType: "first_activity",
	})
	challenge := seedChallenge(t, s, models.Challenge{
		Name:          "Badge Run",
		Objectives:    []models.Objective{{Target: 1}},
		BadgeRewardID: &badge.ID,
	})

	participation, err := s.Challenges.Join(profile, challenge.ID)
	require.NoError(t, err)

	_, err = s.Challenges.UpdateProgress(participation.ID, 0, 1, false)
	require.NoError(t, err)

	has, err := s.Profiles.HasBadge(profile.ID, badge.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestChallengeAdvanceForActivity(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)
	challenge := seedChallenge(t, s, models.Challenge{
		Name: "Mixed Goals",
		Objectives: []models.Objective{
			{ActivityType: "client_meeting", Target: 2},
			{ActivityType: "lead_created", Target: 1},
		},
	})

	participation, err := s.Challenges.Join(profile, challenge.ID)
	require.NoError(t, err)

	s.Challenges.AdvanceForActivity(profile, "client_meeting")

	var reloaded models.ChallengeParticipation
	require.NoError(t, s.DB.Where("id = ?", participation.ID).First(&reloaded).Error)
	assert.Equal(t, 1, reloaded.Progress[0].Current)
	assert.Equal(t, 0, reloaded.Progress[1].Current)
	assert.Equal(t, models.ParticipationActive, reloaded.Status)
}

func TestChallengeExpireOverdue(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)
	soon := time.Now().Add(time.Hour)
	challenge := seedChallenge(t, s, models.Challenge{
		Name:       "Ends Soon",
		Objectives: []models.Objective{{Target: 5}},
		EndsAt:     &soon,
	})

	participation, err := s.Challenges.Join(profile, challenge.ID)
	require.NoError(t, err)

	failed, err := s.Challenges.ExpireOverdue(time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 0, failed)

	failed, err = s.Challenges.ExpireOverdue(time.Now().Add(2 * time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, failed)

	var reloaded models.ChallengeParticipation
	require.NoError(t, s.DB.Where("id = ?", participation.ID).First(&reloaded).Error)
	assert.Equal(t, models.ParticipationFailed, reloaded.Status)
}

func TestChallengeAbandon(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)
	challenge := seedChallenge(t, s, models.Challenge{
		Name:       "Walk Away",
		Objectives: []models.Objective{{Target: 5}},
	})

	participation, err := s.Challenges.Join(profile, challenge.ID)
	require.NoError(t, err)

	abandoned, err := s.Challenges.Abandon(participation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipationAbandoned, abandoned.Status)

	_, err = s.Challenges.Abandon(participation.ID)
	assert.ErrorIs(t, err, ErrParticipationClosed)
}

func TestProgressPercentage(t *testing.T) {
	objectives := []models.Objective{
		{Target: 4},
		{Target: 2},
	}
	p := &models.ChallengeParticipation{
		Progress: []models.ObjectiveProgress{{Current: 1}, {Current: 2}},
	}

	// (25 + 100) / 2 = 62.5
	assert.Equal(t, 62.5, p.ProgressPercentage(objectives))

	// Overshoot caps per objective at 100.
	p.Progress[1].Current = 10
	assert.Equal(t, 62.5, p.ProgressPercentage(objectives))
}
