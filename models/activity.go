package models

import (
	"time"
)

// ActivityEvent records one business activity routed into the engine from the
// CRM layer. Kept so activity_count badge criteria and challenge matching can
// count past events per user.
type ActivityEvent struct {
	ID              string         `gorm:"primaryKey;type:uuid" json:"id"`
	RewardProfileID string         `gorm:"index:idx_activity_profile_type;not null" json:"reward_profile_id"`
	UserID          string         `gorm:"index" json:"user_id"`
	ActivityType    string         `gorm:"type:varchar(64);index:idx_activity_profile_type;not null" json:"activity_type"`
	Payload         map[string]any `gorm:"serializer:json" json:"payload"`
	OccurredAt      time.Time      `gorm:"index" json:"occurred_at"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
