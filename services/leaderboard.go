package services

import (
	"fmt"
	"log"
	"sort"
	"time"

	"rewards-engine/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// LeaderboardService builds and serves ranking snapshots. Entries are
// regenerated wholesale on each rebuild inside one transaction, so readers
// see either the old snapshot or the new one, never a mix.
type LeaderboardService struct {
	DB       *gorm.DB
	Leveling *LevelingCalculator
}

func NewLeaderboardService(db *gorm.DB, leveling *LevelingCalculator) *LeaderboardService {
	return &LeaderboardService{DB: db, Leveling: leveling}
}

// periodStart returns the UTC start of the scoring window, or nil for
// all_time.
func periodStart(period models.LeaderboardPeriod, now time.Time) *time.Time {
	now = now.UTC()
	var start time.Time
	switch period {
	case models.PeriodDaily:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case models.PeriodWeekly:
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // weeks start Monday
		}
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		start = day.AddDate(0, 0, -(weekday - 1))
	case models.PeriodMonthly:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return nil
	}
	return &start
}

type scoredProfile struct {
	ProfileID string
	UserID    string
	Score     int
}

// score computes every profile's score for a metric/period. Period-scoped
// points sum positive ledger entries in the window; experience, streak and
// level read the profile directly.
func (s *LeaderboardService) score(board *models.Leaderboard, now time.Time) ([]scoredProfile, error) {
	if board.Metric == models.MetricPoints {
		if start := periodStart(board.Period, now); start != nil {
			var rows []scoredProfile
			err := s.DB.Model(&models.Transaction{}).
				Select("transactions.reward_profile_id AS profile_id, reward_profiles.user_id AS user_id, COALESCE(SUM(transactions.amount), 0) AS score").
				Joins("JOIN reward_profiles ON reward_profiles.id = transactions.reward_profile_id").
				Where("transactions.amount > 0").
				Where("transactions.created_at >= ?", *start).
				Group("transactions.reward_profile_id, reward_profiles.user_id").
				Scan(&rows).Error
			return rows, err
		}
	}

	var profiles []models.RewardProfile
	if err := s.DB.Find(&profiles).Error; err != nil {
		return nil, err
	}

	rows := make([]scoredProfile, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		var score int
		switch board.Metric {
		case models.MetricPoints:
			score = p.LifetimePoints
		case models.MetricExperience:
			score = s.Leveling.TotalXP(p)
		case models.MetricStreak:
			score = p.CurrentStreak
		case models.MetricLevel:
			score = p.Level
		default:
			return nil, fmt.Errorf("unknown leaderboard metric %q", board.Metric)
		}
		rows = append(rows, scoredProfile{ProfileID: p.ID, UserID: p.UserID, Score: score})
	}
	return rows, nil
}

// Rebuild regenerates a leaderboard's entries: score everyone, sort
// descending with ties broken by profile id, assign ranks 1..N, carry the
// previous snapshot's rank into previous_rank, then swap the entry set in
// one transaction.
func (s *LeaderboardService) Rebuild(boardID string) error {
	var board models.Leaderboard
	if err := s.DB.Where("id = ?", boardID).First(&board).Error; err != nil {
		return err
	}

	now := time.Now()
	scored, err := s.score(&board, now)
	if err != nil {
		return err
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ProfileID < scored[j].ProfileID
	})

	// Previous ranks for rank_change on the next read.
	var oldEntries []models.LeaderboardEntry
	if err := s.DB.Where("leaderboard_id = ?", board.ID).Find(&oldEntries).Error; err != nil {
		return err
	}
	previous := make(map[string]int, len(oldEntries))
	for _, entry := range oldEntries {
		previous[entry.RewardProfileID] = entry.Rank
	}

	entries := make([]models.LeaderboardEntry, 0, len(scored))
	for i, row := range scored {
		entry := models.LeaderboardEntry{
			ID:              uuid.NewString(),
			LeaderboardID:   board.ID,
			RewardProfileID: row.ProfileID,
			UserID:          row.UserID,
			Rank:            i + 1,
			Score:           row.Score,
		}
		if rank, ok := previous[row.ProfileID]; ok {
			prev := rank
			entry.PreviousRank = &prev
		}
		entries = append(entries, entry)
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("leaderboard_id = ?", board.ID).
			Delete(&models.LeaderboardEntry{}).Error; err != nil {
			return err
		}
		if len(entries) > 0 {
			if err := tx.CreateInBatches(entries, 500).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Leaderboard{}).
			Where("id = ?", board.ID).
			Update("last_rebuilt_at", now).Error
	})
}

// RebuildActive rebuilds every active leaderboard, optionally limited to one
// period. Called by the scheduler; failures are logged per board so one bad
// board never starves the rest.
func (s *LeaderboardService) RebuildActive(period *models.LeaderboardPeriod) {
	query := s.DB.Where("is_active = ?", true)
	if period != nil {
		query = query.Where("period = ?", *period)
	}

	var boards []models.Leaderboard
	if err := query.Find(&boards).Error; err != nil {
		log.Printf("[LEADERBOARDS] failed to load boards: %v", err)
		return
	}

	for _, board := range boards {
		if err := s.Rebuild(board.ID); err != nil {
			log.Printf("[LEADERBOARDS] rebuild failed for %s: %v", board.Slug, err)
		}
	}
}

// Top returns the first n entries of the latest snapshot.
func (s *LeaderboardService) Top(boardID string, n int) ([]models.LeaderboardEntry, error) {
	if n < 1 || n > 500 {
		n = 100
	}
	var entries []models.LeaderboardEntry
	err := s.DB.Where("leaderboard_id = ?", boardID).
		Order("rank ASC").
		Limit(n).
		Find(&entries).Error
	return entries, err
}

// UserRank returns a profile's entry in the latest snapshot, or nil if the
// profile is unranked.
func (s *LeaderboardService) UserRank(boardID, profileID string) (*models.LeaderboardEntry, error) {
	var entry models.LeaderboardEntry
	err := s.DB.Where("leaderboard_id = ? AND reward_profile_id = ?", boardID, profileID).
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns leaderboard definitions, active ones first.
func (s *LeaderboardService) List(includeInactive bool) ([]models.Leaderboard, error) {
	query := s.DB.Model(&models.Leaderboard{})
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	var boards []models.Leaderboard
	err := query.Order("name").Find(&boards).Error
	return boards, err
}

// GetBySlug returns one leaderboard definition.
func (s *LeaderboardService) GetBySlug(boardSlug string) (*models.Leaderboard, error) {
	var board models.Leaderboard
	if err := s.DB.Where("slug = ?", boardSlug).First(&board).Error; err != nil {
		return nil, err
	}
	return &board, nil
}

// Create defines a new leaderboard; the slug is derived from the name.
func (s *LeaderboardService) Create(name, description string, metric models.LeaderboardMetric, period models.LeaderboardPeriod) (*models.Leaderboard, error) {
	board := models.Leaderboard{
		ID:          uuid.NewString(),
		Name:        name,
		Slug:        slug.Make(name),
		Description: description,
		Metric:      metric,
		Period:      period,
		IsActive:    true,
	}
	if err := s.DB.Create(&board).Error; err != nil {
		return nil, err
	}
	return &board, nil
}
