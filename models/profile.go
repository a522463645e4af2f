package models

import (
	"time"

	"gorm.io/gorm"
)

// Timestamps is the shared created/updated/deleted column set.
type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// RewardProfile is the per-user progression state: spendable and lifetime
// point balances, XP/level, and streak counters. total_points and
// lifetime_points are caches over the transaction ledger and are only ever
// written alongside a ledger entry.
type RewardProfile struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"` // CRM user id

	Level            int `gorm:"default:1" json:"level"`
	ExperiencePoints int `gorm:"default:0" json:"experience_points"` // XP within the current level

	TotalPoints    int `gorm:"default:0" json:"total_points"`    // spendable balance
	LifetimePoints int `gorm:"default:0" json:"lifetime_points"` // never decreases

	CurrentStreak   int        `gorm:"default:0" json:"current_streak"`
	LongestStreak   int        `gorm:"default:0" json:"longest_streak"`
	StreakUpdatedAt *time.Time `json:"streak_updated_at,omitempty"`

	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`

	Timestamps
}

// CanAfford reports whether the spendable balance covers a cost.
func (p *RewardProfile) CanAfford(cost int) bool {
	return p.TotalPoints >= cost
}

// StreakMilestones are the streak lengths that mark a StreakUpdated event as
// a milestone.
var StreakMilestones = map[int]bool{
	7:   true,
	14:  true,
	30:  true,
	60:  true,
	100: true,
}

// IsStreakMilestone reports whether a streak length is a celebrated one.
func IsStreakMilestone(days int) bool {
	return StreakMilestones[days]
}
