package services

import (
	"fmt"
	"log"

	"rewards-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActivityContext is what badge criteria see about the triggering activity.
type ActivityContext struct {
	ActivityType string
	Payload      map[string]any
}

// CriteriaEvaluator decides whether a profile satisfies one badge's criteria.
// Evaluators are registered by criteria_type key; adding a badge kind never
// touches the dispatch core.
type CriteriaEvaluator func(svc *BadgeService, profile *models.RewardProfile, ctx ActivityContext, badge *models.Badge) (bool, error)

// BadgeService evaluates criteria and grants badges idempotently.
type BadgeService struct {
	DB         *gorm.DB
	Events     *EventService
	Ledger     *LedgerService
	Leveling   *LevelingCalculator
	evaluators map[string]CriteriaEvaluator
}

func NewBadgeService(db *gorm.DB, events *EventService, ledger *LedgerService, leveling *LevelingCalculator) *BadgeService {
	s := &BadgeService{
		DB:         db,
		Events:     events,
		Ledger:     ledger,
		Leveling:   leveling,
		evaluators: map[string]CriteriaEvaluator{},
	}

	// Built-in criteria kinds.
	s.Register("points_total", evalPointsTotal)
	s.Register("level_reached", evalLevelReached)
	s.Register("streak_days", evalStreakDays)
	s.Register("activity_count", evalActivityCount)
	s.Register("first_activity", evalFirstActivity)

	return s
}

// Register adds or replaces an evaluator for a criteria_type key.
func (s *BadgeService) Register(criteriaType string, fn CriteriaEvaluator) {
	s.evaluators[criteriaType] = fn
}

// Evaluate runs every active, not-yet-earned badge's criteria against the
// activity context and grants those that pass. Unknown criteria types and
// evaluator errors are logged and skipped; badge evaluation never fails the
// primary activity.
func (s *BadgeService) Evaluate(profile *models.RewardProfile, ctx ActivityContext) ([]models.Badge, error) {
	var candidates []models.Badge
	err := s.DB.
		Where("is_active = ?", true).
		Where("id NOT IN (?)", s.DB.Model(&models.UserBadge{}).
			Select("badge_id").
			Where("reward_profile_id = ?", profile.ID)).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	var granted []models.Badge
	for i := range candidates {
		badge := &candidates[i]
		eval, ok := s.evaluators[badge.CriteriaType]
		if !ok {
			log.Printf("[BADGES] no evaluator for criteria_type %q (badge %s), skipping", badge.CriteriaType, badge.Slug)
			continue
		}

		met, err := eval(s, profile, ctx, badge)
		if err != nil {
			log.Printf("[BADGES] evaluator %q failed for badge %s: %v", badge.CriteriaType, badge.Slug, err)
			continue
		}
		if !met {
			continue
		}

		grantCtx := map[string]any{"activity_type": ctx.ActivityType}
		if _, fresh, err := s.Grant(profile, badge, grantCtx); err != nil {
			log.Printf("[BADGES] failed to grant badge %s to profile %s: %v", badge.Slug, profile.ID, err)
		} else if fresh {
			granted = append(granted, *badge)
		}
	}
	return granted, nil
}

// grantOutcome carries everything a grant produced so events can be
// published only after the enclosing transaction commits.
type grantOutcome struct {
	UserBadge *models.UserBadge
	Badge     *models.Badge
	Fresh     bool
	LevelUps  []models.LevelUp
	Profile   models.RewardProfile // post-grant snapshot
}

// Grant awards a badge once. The (profile, badge) unique index makes the
// check-then-insert race-safe: a concurrent duplicate insert is dropped by
// OnConflict DoNothing and reported as not fresh, so rewards credit exactly
// once. Returns the UserBadge row and whether this call created it.
func (s *BadgeService) Grant(profile *models.RewardProfile, badge *models.Badge, context map[string]any) (*models.UserBadge, bool, error) {
	var outcome *grantOutcome

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var locked models.RewardProfile
		if err := lockForUpdate(tx).Where("id = ?", profile.ID).First(&locked).Error; err != nil {
			return err
		}

		var err error
		outcome, err = s.grantInTx(tx, &locked, badge, context)
		if err != nil {
			return err
		}
		*profile = outcome.Profile
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	s.publishGrant(outcome)
	return outcome.UserBadge, outcome.Fresh, nil
}

// grantInTx performs the idempotent insert and reward credit against an
// already-locked profile row inside the caller's transaction.
func (s *BadgeService) grantInTx(tx *gorm.DB, locked *models.RewardProfile, badge *models.Badge, context map[string]any) (*grantOutcome, error) {
	userBadge := models.UserBadge{
		ID:              uuid.NewString(),
		RewardProfileID: locked.ID,
		BadgeID:         badge.ID,
		Context:         context,
	}

	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reward_profile_id"}, {Name: "badge_id"}},
		DoNothing: true,
	}).Create(&userBadge)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Already earned; return the existing grant untouched. Re-read into a
		// fresh value: userBadge still carries the generated id, which would
		// otherwise end up in the query conditions.
		var existing models.UserBadge
		if err := tx.Where("reward_profile_id = ? AND badge_id = ?", locked.ID, badge.ID).
			First(&existing).Error; err != nil {
			return nil, err
		}
		return &grantOutcome{UserBadge: &existing, Badge: badge, Profile: *locked}, nil
	}

	if badge.PointsReward > 0 {
		if _, err := s.Ledger.recordInTx(tx, locked, RecordInput{
			Type:        models.TxBonus,
			Amount:      badge.PointsReward,
			SourceKind:  models.SourceBadge,
			SourceID:    badge.ID,
			Description: fmt.Sprintf("Badge earned: %s", badge.Name),
		}); err != nil {
			return nil, err
		}
	}

	var levelUps []models.LevelUp
	if badge.XPReward > 0 {
		levelUps = s.Leveling.ApplyXP(locked, badge.XPReward)
		if err := saveProgression(tx, locked); err != nil {
			return nil, err
		}
	}

	return &grantOutcome{
		UserBadge: &userBadge,
		Badge:     badge,
		Fresh:     true,
		LevelUps:  levelUps,
		Profile:   *locked,
	}, nil
}

// publishGrant emits the events for a fresh grant after commit.
func (s *BadgeService) publishGrant(o *grantOutcome) {
	if o == nil || !o.Fresh {
		return
	}
	for _, up := range o.LevelUps {
		s.Events.Publish(models.EventLevelUp, up.UserID, up)
	}
	s.Events.Publish(models.EventBadgeEarned, o.Profile.UserID, models.BadgeEarned{
		UserID:        o.Profile.UserID,
		BadgeName:     o.Badge.Name,
		Rarity:        o.Badge.Rarity,
		PointsAwarded: o.Badge.PointsReward,
	})
	if o.Badge.PointsReward > 0 {
		s.Events.Publish(models.EventPointsEarned, o.Profile.UserID, models.PointsEarned{
			UserID:         o.Profile.UserID,
			Amount:         o.Badge.PointsReward,
			Type:           models.TxBonus,
			TotalPoints:    o.Profile.TotalPoints,
			LifetimePoints: o.Profile.LifetimePoints,
		})
	}
}

// ListAvailable returns active badges visible to a profile: non-secret ones
// plus any secret badge the profile already earned.
func (s *BadgeService) ListAvailable(profileID string) ([]models.Badge, error) {
	var badges []models.Badge
	err := s.DB.
		Where("is_active = ?", true).
		Where("is_secret = ? OR id IN (?)", false, s.DB.Model(&models.UserBadge{}).
			Select("badge_id").
			Where("reward_profile_id = ?", profileID)).
		Order("sort_order").Order("name").
		Find(&badges).Error
	return badges, err
}

// ListEarned returns the profile's earned badges, newest first.
func (s *BadgeService) ListEarned(profileID string) ([]models.UserBadge, error) {
	var earned []models.UserBadge
	err := s.DB.Where("reward_profile_id = ?", profileID).
		Order("earned_at DESC").
		Find(&earned).Error
	return earned, err
}

// saveProgression persists level/XP after ApplyXP.
func saveProgression(tx *gorm.DB, profile *models.RewardProfile) error {
	return tx.Model(&models.RewardProfile{}).
		Where("id = ?", profile.ID).
		Updates(map[string]any{
			"level":             profile.Level,
			"experience_points": profile.ExperiencePoints,
		}).Error
}

// --- Built-in criteria evaluators ---

// evalPointsTotal: lifetime_points >= config "threshold"
func evalPointsTotal(_ *BadgeService, profile *models.RewardProfile, _ ActivityContext, badge *models.Badge) (bool, error) {
	return profile.LifetimePoints >= badge.CriteriaInt("threshold"), nil
}

// evalLevelReached: level >= config "level"
func evalLevelReached(_ *BadgeService, profile *models.RewardProfile, _ ActivityContext, badge *models.Badge) (bool, error) {
	return profile.Level >= badge.CriteriaInt("level"), nil
}

// evalStreakDays: current_streak >= config "days"
func evalStreakDays(_ *BadgeService, profile *models.RewardProfile, _ ActivityContext, badge *models.Badge) (bool, error) {
	return profile.CurrentStreak >= badge.CriteriaInt("days"), nil
}

// evalActivityCount: count of config "activity_type" events >= config "count"
func evalActivityCount(svc *BadgeService, profile *models.RewardProfile, _ ActivityContext, badge *models.Badge) (bool, error) {
	activityType := badge.CriteriaString("activity_type")
	required := badge.CriteriaInt("count")
	if activityType == "" || required < 1 {
		return false, fmt.Errorf("activity_count criteria needs activity_type and count")
	}

	var count int64
	err := svc.DB.Model(&models.ActivityEvent{}).
		Where("reward_profile_id = ? AND activity_type = ?", profile.ID, activityType).
		Count(&count).Error
	return count >= int64(required), err
}

// evalFirstActivity: any activity at all (welcome badge)
func evalFirstActivity(_ *BadgeService, profile *models.RewardProfile, ctx ActivityContext, _ *models.Badge) (bool, error) {
	return ctx.ActivityType != "" || profile.LastActivityAt != nil, nil
}
