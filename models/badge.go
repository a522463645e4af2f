package models

import (
	"time"
)

// BadgeRarity levels, in ascending order of prestige
type BadgeRarity string

const (
	RarityCommon    BadgeRarity = "common"
	RarityUncommon  BadgeRarity = "uncommon"
	RarityRare      BadgeRarity = "rare"
	RarityEpic      BadgeRarity = "epic"
	RarityLegendary BadgeRarity = "legendary"
)

// BadgeRarities lists every valid rarity
var BadgeRarities = []BadgeRarity{RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary}

// RarityColor returns the UI hex color for a rarity.
func RarityColor(r BadgeRarity) string {
	switch r {
	case RarityUncommon:
		return "#22c55e"
	case RarityRare:
		return "#3b82f6"
	case RarityEpic:
		return "#a855f7"
	case RarityLegendary:
		return "#f59e0b"
	default:
		return "#9ca3af"
	}
}

// BadgeCategory groups badges for catalog display
type BadgeCategory struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null" json:"slug"`
	SortOrder int       `gorm:"default:0" json:"sort_order"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Badge is an admin-defined achievement. Earning criteria are dispatched by
// CriteriaType against CriteriaConfig, so new badge kinds only need a new
// evaluator registration.
type Badge struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	CategoryID  string `gorm:"index" json:"category_id"`
	Name        string `gorm:"not null" json:"name"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
	IconURL     string `gorm:"type:text" json:"icon_url"`

	Rarity       BadgeRarity `gorm:"type:varchar(16);default:'common'" json:"rarity"`
	PointsReward int         `gorm:"default:0" json:"points_reward"`
	XPReward     int         `gorm:"default:0" json:"xp_reward"`

	CriteriaType   string         `gorm:"type:varchar(64);not null" json:"criteria_type"`
	CriteriaConfig map[string]any `gorm:"serializer:json" json:"criteria_config"`

	IsSecret  bool `gorm:"default:false" json:"is_secret"` // hidden until earned
	IsActive  bool `gorm:"default:true" json:"is_active"`
	SortOrder int  `gorm:"default:0" json:"sort_order"`

	Timestamps
}

// CriteriaInt reads an integer parameter from the criteria config.
func (b *Badge) CriteriaInt(key string) int {
	switch v := b.CriteriaConfig[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// CriteriaString reads a string parameter from the criteria config.
func (b *Badge) CriteriaString(key string) string {
	if v, ok := b.CriteriaConfig[key].(string); ok {
		return v
	}
	return ""
}

// UserBadge records a badge earned by a profile. At most one row per
// (profile, badge) pair — enforced by the unique index so granting stays
// idempotent under concurrent evaluation.
type UserBadge struct {
	ID              string         `gorm:"primaryKey;type:uuid" json:"id"`
	RewardProfileID string         `gorm:"uniqueIndex:idx_profile_badge;not null" json:"reward_profile_id"`
	BadgeID         string         `gorm:"uniqueIndex:idx_profile_badge;not null" json:"badge_id"`
	EarnedAt        time.Time      `gorm:"autoCreateTime" json:"earned_at"`
	Context         map[string]any `gorm:"serializer:json" json:"context"` // snapshot of triggering data
}
