package models

import (
	"math"
	"time"
)

// ChallengeType buckets challenges by cadence/shape
type ChallengeType string

const (
	ChallengeDaily      ChallengeType = "daily"
	ChallengeWeekly     ChallengeType = "weekly"
	ChallengeMonthly    ChallengeType = "monthly"
	ChallengeSpecial    ChallengeType = "special"
	ChallengeIndividual ChallengeType = "individual"
	ChallengeTeam       ChallengeType = "team"
)

// ChallengeDifficulty is display metadata, not enforced logic
type ChallengeDifficulty string

const (
	DifficultyEasy   ChallengeDifficulty = "easy"
	DifficultyMedium ChallengeDifficulty = "medium"
	DifficultyHard   ChallengeDifficulty = "hard"
	DifficultyExpert ChallengeDifficulty = "expert"
)

// Objective is one target within a challenge. ActivityType names the CRM
// activity that advances it; empty means progress is only set manually.
type Objective struct {
	Description  string `json:"description"`
	ActivityType string `json:"activity_type,omitempty"`
	Target       int    `json:"target"`
}

// Challenge is a time-boxed objective set users opt into.
type Challenge struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Description string `gorm:"type:text" json:"description"`

	Type       ChallengeType       `gorm:"type:varchar(16);default:'individual'" json:"type"`
	Difficulty ChallengeDifficulty `gorm:"type:varchar(16);default:'medium'" json:"difficulty"`

	PointsReward  int     `gorm:"default:0" json:"points_reward"`
	XPReward      int     `gorm:"default:0" json:"xp_reward"`
	BadgeRewardID *string `json:"badge_reward_id,omitempty"`

	Objectives      []Objective `gorm:"serializer:json" json:"objectives"`
	MaxParticipants *int        `json:"max_participants,omitempty"` // nil = unlimited

	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`

	IsActive   bool `gorm:"default:true" json:"is_active"`
	IsFeatured bool `gorm:"default:false" json:"is_featured"`
	SortOrder  int  `gorm:"default:0" json:"sort_order"`

	Timestamps
}

// IsCurrent reports whether the challenge is active and inside its window.
func (c *Challenge) IsCurrent(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.StartsAt != nil && c.StartsAt.After(now) {
		return false
	}
	if c.EndsAt != nil && c.EndsAt.Before(now) {
		return false
	}
	return true
}

// ParticipationStatus for a user's run at a challenge
type ParticipationStatus string

const (
	ParticipationActive    ParticipationStatus = "active"
	ParticipationCompleted ParticipationStatus = "completed"
	ParticipationFailed    ParticipationStatus = "failed"
	ParticipationAbandoned ParticipationStatus = "abandoned"
)

// ObjectiveProgress tracks one objective's counter
type ObjectiveProgress struct {
	Current int `json:"current"`
}

// ChallengeParticipation is one user's run at one challenge. Status only moves
// active → completed|failed|abandoned; terminal states never revert.
type ChallengeParticipation struct {
	ID              string `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID     string `gorm:"uniqueIndex:idx_challenge_profile;not null" json:"challenge_id"`
	RewardProfileID string `gorm:"uniqueIndex:idx_challenge_profile;not null" json:"reward_profile_id"`

	Progress []ObjectiveProgress `gorm:"serializer:json" json:"progress"`
	Status   ParticipationStatus `gorm:"type:varchar(16);default:'active'" json:"status"`

	JoinedAt    time.Time  `gorm:"autoCreateTime" json:"joined_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Timestamps
}

// IsTerminal reports whether the participation can still change status.
func (p *ChallengeParticipation) IsTerminal() bool {
	return p.Status != ParticipationActive
}

// ObjectivesMet reports whether every objective's counter reached its target.
func (p *ChallengeParticipation) ObjectivesMet(objectives []Objective) bool {
	for i, obj := range objectives {
		target := obj.Target
		if target < 1 {
			target = 1
		}
		current := 0
		if i < len(p.Progress) {
			current = p.Progress[i].Current
		}
		if current < target {
			return false
		}
	}
	return true
}

// ProgressPercentage averages per-objective completion, each capped at 100,
// rounded to 2 decimal places. A challenge with no objectives reports 100
// once completed and 0 before that.
func (p *ChallengeParticipation) ProgressPercentage(objectives []Objective) float64 {
	if len(objectives) == 0 {
		if p.Status == ParticipationCompleted {
			return 100
		}
		return 0
	}

	total := 0.0
	for i, obj := range objectives {
		target := obj.Target
		if target < 1 {
			target = 1
		}
		current := 0
		if i < len(p.Progress) {
			current = p.Progress[i].Current
		}
		total += math.Min(100, float64(current)/float64(target)*100)
	}
	return math.Round(total/float64(len(objectives))*100) / 100
}
