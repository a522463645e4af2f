package models

import (
	"time"
)

// LeaderboardMetric selects what a leaderboard ranks by
type LeaderboardMetric string

const (
	MetricPoints     LeaderboardMetric = "points"
	MetricExperience LeaderboardMetric = "experience"
	MetricStreak     LeaderboardMetric = "streak"
	MetricLevel      LeaderboardMetric = "level"
)

// LeaderboardPeriod selects the scoring window
type LeaderboardPeriod string

const (
	PeriodDaily   LeaderboardPeriod = "daily"
	PeriodWeekly  LeaderboardPeriod = "weekly"
	PeriodMonthly LeaderboardPeriod = "monthly"
	PeriodAllTime LeaderboardPeriod = "all_time"
)

// Leaderboard is an admin-defined ranking over a metric and period.
type Leaderboard struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Description string `gorm:"type:text" json:"description"`

	Metric LeaderboardMetric `gorm:"type:varchar(16);not null" json:"metric"`
	Period LeaderboardPeriod `gorm:"type:varchar(16);not null" json:"period"`

	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`

	IsActive      bool       `gorm:"default:true" json:"is_active"`
	LastRebuiltAt *time.Time `json:"last_rebuilt_at,omitempty"`

	Timestamps
}

// LeaderboardEntry is one row of a ranking snapshot. Entries are regenerated
// wholesale on each rebuild, never incrementally mutated.
type LeaderboardEntry struct {
	ID              string `gorm:"primaryKey;type:uuid" json:"id"`
	LeaderboardID   string `gorm:"index:idx_board_rank;not null" json:"leaderboard_id"`
	RewardProfileID string `gorm:"index;not null" json:"reward_profile_id"`
	UserID          string `gorm:"index" json:"user_id"` // denormalized for read APIs

	Rank         int  `gorm:"index:idx_board_rank;not null" json:"rank"`
	Score        int  `gorm:"not null" json:"score"`
	PreviousRank *int `json:"previous_rank,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// RankChange is previous_rank - rank; positive means the user moved up.
func (e *LeaderboardEntry) RankChange() int {
	if e.PreviousRank == nil {
		return 0
	}
	return *e.PreviousRank - e.Rank
}
