package models

import (
	"time"
)

// EventName identifies an outbound domain event
type EventName string

const (
	EventPointsEarned       EventName = "points_earned"
	EventLevelUp            EventName = "level_up"
	EventStreakUpdated      EventName = "streak_updated"
	EventBadgeEarned        EventName = "badge_earned"
	EventChallengeCompleted EventName = "challenge_completed"
	EventRewardRedeemed     EventName = "reward_redeemed"
)

// PointsEarned is emitted whenever a positive ledger entry lands.
type PointsEarned struct {
	UserID         string          `json:"user_id"`
	Amount         int             `json:"amount"`
	Type           TransactionType `json:"type"`
	TotalPoints    int             `json:"total_points"`
	LifetimePoints int             `json:"lifetime_points"`
}

// LevelUp is emitted once per level gained; a single XP award that jumps
// several levels emits one event per jump.
type LevelUp struct {
	UserID        string `json:"user_id"`
	PreviousLevel int    `json:"previous_level"`
	NewLevel      int    `json:"new_level"`
	IsMilestone   bool   `json:"is_milestone"` // every 10th level
}

// StreakUpdated is emitted after any streak-affecting activity.
type StreakUpdated struct {
	UserID         string `json:"user_id"`
	PreviousStreak int    `json:"previous_streak"`
	CurrentStreak  int    `json:"current_streak"`
	IsMilestone    bool   `json:"is_milestone"`
	WasBroken      bool   `json:"was_broken"`
	IsNewRecord    bool   `json:"is_new_record"`
}

// BadgeEarned is emitted on the first (and only) grant of a badge.
type BadgeEarned struct {
	UserID        string      `json:"user_id"`
	BadgeName     string      `json:"badge_name"`
	Rarity        BadgeRarity `json:"rarity"`
	PointsAwarded int         `json:"points_awarded"`
}

// ChallengeCompleted is emitted when all objectives of a participation are met.
type ChallengeCompleted struct {
	UserID        string `json:"user_id"`
	ChallengeName string `json:"challenge_name"`
	PointsReward  int    `json:"points_reward"`
	XPReward      int    `json:"xp_reward"`
}

// RewardRedeemed is emitted after a redemption commits.
type RewardRedeemed struct {
	UserID      string           `json:"user_id"`
	ItemName    string           `json:"item_name"`
	PointsSpent int              `json:"points_spent"`
	Status      RedemptionStatus `json:"status"`
}

// RewardEvent persists an emitted event so the SSE stream can replay from a
// created_at cursor. Delivery is best-effort; a failed insert never rolls
// back the state transition that produced the event.
type RewardEvent struct {
	ID        string         `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string         `gorm:"index:idx_event_user_time" json:"user_id"`
	Name      EventName      `gorm:"type:varchar(32);not null" json:"name"`
	Payload   map[string]any `gorm:"serializer:json" json:"payload"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index:idx_event_user_time" json:"created_at"`
}
