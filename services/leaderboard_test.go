package services

import (
	"testing"
	"time"

	"rewards-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderboardRebuildRanksByPoints(t *testing.T) {
	s := newTestStack(t)
	s.createProfile(t, "u1", 100)
	s.createProfile(t, "u2", 300)
	s.createProfile(t, "u3", 200)

	board, err := s.Leaderboards.Create("Top Earners", "", models.MetricPoints, models.PeriodAllTime)
	require.NoError(t, err)
	require.Equal(t, "top-earners", board.Slug)

	require.NoError(t, s.Leaderboards.Rebuild(board.ID))

	top, err := s.Leaderboards.Top(board.ID, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "u2", top[0].UserID)
	assert.Equal(t, 300, top[0].Score)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, "u3", top[1].UserID)
	assert.Equal(t, "u1", top[2].UserID)
	assert.Nil(t, top[0].PreviousRank)
}

func TestLeaderboardRebuildTracksPreviousRank(t *testing.T) {
	s := newTestStack(t)
	p1 := s.createProfile(t, "u1", 100)
	s.createProfile(t, "u2", 300)

	board, err := s.Leaderboards.Create("Movers", "", models.MetricPoints, models.PeriodAllTime)
	require.NoError(t, err)
	require.NoError(t, s.Leaderboards.Rebuild(board.ID))

	// u1 overtakes u2.
	_, err = s.Ledger.Record(p1.ID, RecordInput{
		Type:       models.TxEarn,
		Amount:     500,
		SourceKind: models.SourceManual,
	})
	require.NoError(t, err)
	require.NoError(t, s.Leaderboards.Rebuild(board.ID))

	entry, err := s.Leaderboards.UserRank(board.ID, p1.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.Rank)
	require.NotNil(t, entry.PreviousRank)
	assert.Equal(t, 2, *entry.PreviousRank)
	assert.Equal(t, 1, entry.RankChange())
}

func TestLeaderboardMetricLevelAndStreak(t *testing.T) {
	s := newTestStack(t)
	p1 := s.createProfile(t, "u1", 0)
	p2 := s.createProfile(t, "u2", 0)

	require.NoError(t, s.DB.Model(&models.RewardProfile{}).Where("id = ?", p1.ID).
		Updates(map[string]any{"level": 5, "current_streak": 2}).Error)
	require.NoError(t, s.DB.Model(&models.RewardProfile{}).Where("id = ?", p2.ID).
		Updates(map[string]any{"level": 3, "current_streak": 9}).Error)

	levels, err := s.Leaderboards.Create("By Level", "", models.MetricLevel, models.PeriodAllTime)
	require.NoError(t, err)
	require.NoError(t, s.Leaderboards.Rebuild(levels.ID))
	top, err := s.Leaderboards.Top(levels.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, "u1", top[0].UserID)

	streaks, err := s.Leaderboards.Create("By Streak", "", models.MetricStreak, models.PeriodAllTime)
	require.NoError(t, err)
	require.NoError(t, s.Leaderboards.Rebuild(streaks.ID))
	top, err = s.Leaderboards.Top(streaks.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, "u2", top[0].UserID)
}

func TestLeaderboardTiesBreakByProfileID(t *testing.T) {
	s := newTestStack(t)
	p1 := s.createProfile(t, "u1", 100)
	p2 := s.createProfile(t, "u2", 100)

	board, err := s.Leaderboards.Create("Tied", "", models.MetricPoints, models.PeriodAllTime)
	require.NoError(t, err)
	require.NoError(t, s.Leaderboards.Rebuild(board.ID))

	top, err := s.Leaderboards.Top(board.ID, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)

	expectFirst := p1.ID
	if p2.ID < p1.ID {
		expectFirst = p2.ID
	}
	assert.Equal(t, expectFirst, top[0].RewardProfileID)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, 2, top[1].Rank)
}

func TestLeaderboardUserRankUnranked(t *testing.T) {
	s := newTestStack(t)
	profile := s.createProfile(t, "u1", 0)

	board, err := s.Leaderboards.Create("Empty", "", models.MetricPoints, models.PeriodDaily)
	require.NoError(t, err)

	entry, err := s.Leaderboards.UserRank(board.ID, profile.ID)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestLeaderboardDailyWindowExcludesOldEarnings(t *testing.T) {
	s := newTestStack(t)
	p1 := s.createProfile(t, "u1", 0)
	p2 := s.createProfile(t, "u2", 0)

	_, err := s.Ledger.Record(p1.ID, RecordInput{
		Type: models.TxEarn, Amount: 40, SourceKind: models.SourceActivity,
	})
	require.NoError(t, err)
	_, err = s.Ledger.Record(p2.ID, RecordInput{
		Type: models.TxEarn, Amount: 10, SourceKind: models.SourceActivity,
	})
	require.NoError(t, err)

	// Backdate u1's earning to before today's window.
	require.NoError(t, s.DB.Model(&models.Transaction{}).
		Where("reward_profile_id = ?", p1.ID).
		Update("created_at", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)).Error)

	board, err := s.Leaderboards.Create("Today", "", models.MetricPoints, models.PeriodDaily)
	require.NoError(t, err)
	require.NoError(t, s.Leaderboards.Rebuild(board.ID))

	top, err := s.Leaderboards.Top(board.ID, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "u2", top[0].UserID)
	assert.Equal(t, 10, top[0].Score)
}
