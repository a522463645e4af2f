package services

import (
	"fmt"
	"log"
	"math"
	"time"

	"rewards-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityService is the single entry point for CRM activities. One call
// credits points and XP, advances the streak, and fans out to badge and
// challenge evaluation.
type ActivityService struct {
	DB         *gorm.DB
	Profiles   *ProfileService
	Ledger     *LedgerService
	Leveling   *LevelingCalculator
	Streaks    *StreakService
	Badges     *BadgeService
	Challenges *ChallengeService
	Events     *EventService
	Config     Config
	Rules      map[string]ActivityRule
}

func NewActivityService(
	db *gorm.DB,
	profiles *ProfileService,
	ledger *LedgerService,
	leveling *LevelingCalculator,
	streaks *StreakService,
	badges *BadgeService,
	challenges *ChallengeService,
	events *EventService,
	cfg Config,
) *ActivityService {
	return &ActivityService{
		DB:         db,
		Profiles:   profiles,
		Ledger:     ledger,
		Leveling:   leveling,
		Streaks:    streaks,
		Badges:     badges,
		Challenges: challenges,
		Events:     events,
		Config:     cfg,
		Rules:      DefaultActivityRules,
	}
}

// rule resolves the point/XP weights for an activity type.
func (s *ActivityService) rule(activityType string) ActivityRule {
	if r, ok := s.Rules[activityType]; ok {
		return r
	}
	return DefaultRule
}

// ActivityResult summarizes what one activity produced.
type ActivityResult struct {
	Profile       *models.RewardProfile `json:"profile"`
	PointsAwarded int                   `json:"points_awarded"`
	XPAwarded     int                   `json:"xp_awarded"`
	StreakBonus   float64               `json:"streak_bonus"`
	LevelUps      []models.LevelUp      `json:"level_ups,omitempty"`
	BadgesEarned  []models.Badge        `json:"badges_earned,omitempty"`
}

// ProcessActivity credits one CRM activity. The ledger entry, XP award,
// streak update and activity record commit as one transaction; badge and
// challenge evaluation run afterwards and their failures are logged, never
// propagated, so the credit always stands.
func (s *ActivityService) ProcessActivity(userID, activityType string, payload map[string]any, occurredAt time.Time) (*ActivityResult, error) {
	if activityType == "" {
		return nil, fmt.Errorf("activity type is required")
	}

	profile, err := s.Profiles.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}

	rule := s.rule(activityType)
	var result ActivityResult
	var streakEvent *models.StreakUpdated
	var entry *models.Transaction

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var locked models.RewardProfile
		if err := lockForUpdate(tx).Where("id = ?", profile.ID).First(&locked).Error; err != nil {
			return err
		}

		if err := tx.Create(&models.ActivityEvent{
			ID:              uuid.NewString(),
			RewardProfileID: locked.ID,
			UserID:          locked.UserID,
			ActivityType:    activityType,
			Payload:         payload,
			OccurredAt:      occurredAt,
		}).Error; err != nil {
			return err
		}

		// Streak first: today's activity may unlock a bonus tier that applies
		// to this very credit.
		streakEvent, err = s.Streaks.RecordActivity(tx, &locked, occurredAt)
		if err != nil {
			return err
		}

		bonus := s.Config.StreakBonus(locked.CurrentStreak)
		points := int(math.Round(float64(rule.Points) * (1 + bonus)))

		if points > 0 {
			entry, err = s.Ledger.recordInTx(tx, &locked, RecordInput{
				Type:        models.TxEarn,
				Amount:      points,
				SourceKind:  models.SourceActivity,
				SourceID:    activityType,
				Description: fmt.Sprintf("Activity: %s", activityType),
			})
			if err != nil {
				return err
			}
		}

		result.LevelUps = s.Leveling.ApplyXP(&locked, rule.XP)
		if rule.XP > 0 {
			if err := saveProgression(tx, &locked); err != nil {
				return err
			}
		}

		if err := s.Profiles.TouchActivity(tx, &locked, occurredAt); err != nil {
			return err
		}

		result.Profile = &locked
		result.PointsAwarded = points
		result.XPAwarded = rule.XP
		result.StreakBonus = bonus
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Ledger.publishEarn(result.Profile, entry)
	s.Streaks.Publish(streakEvent)
	for _, up := range result.LevelUps {
		s.Events.Publish(models.EventLevelUp, up.UserID, up)
	}

	// Secondary fan-out. Each grant runs in its own transaction; a failure
	// here never undoes the credit above.
	granted, err := s.Badges.Evaluate(result.Profile, ActivityContext{
		ActivityType: activityType,
		Payload:      payload,
	})
	if err != nil {
		log.Printf("[ACTIVITY] badge evaluation failed for user %s: %v", userID, err)
	}
	result.BadgesEarned = granted

	s.Challenges.AdvanceForActivity(result.Profile, activityType)

	return &result, nil
}

// History returns a profile's raw activity events, newest first.
func (s *ActivityService) History(profileID string, limit int) ([]models.ActivityEvent, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var events []models.ActivityEvent
	err := s.DB.Where("reward_profile_id = ?", profileID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
