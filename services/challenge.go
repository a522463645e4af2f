package services

import (
	"fmt"
	"log"
	"time"

	"rewards-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChallengeService tracks per-user participation in time-boxed objectives.
type ChallengeService struct {
	DB       *gorm.DB
	Events   *EventService
	Ledger   *LedgerService
	Leveling *LevelingCalculator
	Badges   *BadgeService
}

func NewChallengeService(db *gorm.DB, events *EventService, ledger *LedgerService, leveling *LevelingCalculator, badges *BadgeService) *ChallengeService {
	return &ChallengeService{DB: db, Events: events, Ledger: ledger, Leveling: leveling, Badges: badges}
}

// Join enrolls a profile in a challenge with all objective progress at zero.
// Idempotent: re-joining returns the existing participation. The capacity
// check runs under a lock on the challenge row so concurrent joins cannot
// overshoot max_participants.
func (s *ChallengeService) Join(profile *models.RewardProfile, challengeID string) (*models.ChallengeParticipation, error) {
	var participation models.ChallengeParticipation

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var challenge models.Challenge
		if err := lockForUpdate(tx).Where("id = ?", challengeID).First(&challenge).Error; err != nil {
			return fmt.Errorf("challenge %s not found: %w", challengeID, err)
		}

		if !challenge.IsCurrent(time.Now()) {
			return ErrChallengeNotOpen
		}

		// Existing participation wins before the capacity check so re-joins
		// never fail on a full challenge.
		err := tx.Where("challenge_id = ? AND reward_profile_id = ?", challengeID, profile.ID).
			First(&participation).Error
		if err == nil {
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		if challenge.MaxParticipants != nil {
			var count int64
			if err := tx.Model(&models.ChallengeParticipation{}).
				Where("challenge_id = ?", challengeID).
				Count(&count).Error; err != nil {
				return err
			}
			if count >= int64(*challenge.MaxParticipants) {
				return ErrChallengeFull
			}
		}

		participation = models.ChallengeParticipation{
			ID:              uuid.NewString(),
			ChallengeID:     challengeID,
			RewardProfileID: profile.ID,
			Progress:        make([]models.ObjectiveProgress, len(challenge.Objectives)),
			Status:          models.ParticipationActive,
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "challenge_id"}, {Name: "reward_profile_id"}},
			DoNothing: true,
		}).Create(&participation)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// A concurrent join won the insert; re-read into a fresh value so
			// the generated id above does not leak into the query conditions.
			var existing models.ChallengeParticipation
			if err := tx.Where("challenge_id = ? AND reward_profile_id = ?", challengeID, profile.ID).
				First(&existing).Error; err != nil {
				return err
			}
			participation = existing
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &participation, nil
}

// UpdateProgress mutates one objective's counter — absolute set when
// increment is false, delta otherwise — then checks for completion.
func (s *ChallengeService) UpdateProgress(participationID string, objectiveIndex, value int, increment bool) (*models.ChallengeParticipation, error) {
	var participation models.ChallengeParticipation
	var completed *models.ChallengeCompleted
	var levelUps []models.LevelUp
	var badgeGrant *grantOutcome

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).Where("id = ?", participationID).First(&participation).Error; err != nil {
			return err
		}
		if participation.IsTerminal() {
			return ErrParticipationClosed
		}

		var challenge models.Challenge
		if err := tx.Where("id = ?", participation.ChallengeID).First(&challenge).Error; err != nil {
			return err
		}
		if objectiveIndex < 0 || objectiveIndex >= len(challenge.Objectives) {
			return fmt.Errorf("objective index %d out of range", objectiveIndex)
		}

		for len(participation.Progress) < len(challenge.Objectives) {
			participation.Progress = append(participation.Progress, models.ObjectiveProgress{})
		}
		if increment {
			participation.Progress[objectiveIndex].Current += value
		} else {
			participation.Progress[objectiveIndex].Current = value
		}

		var err error
		completed, levelUps, badgeGrant, err = s.checkCompletion(tx, &participation, &challenge)
		if err != nil {
			return err
		}

		return tx.Save(&participation).Error
	})
	if err != nil {
		return nil, err
	}

	for _, up := range levelUps {
		s.Events.Publish(models.EventLevelUp, up.UserID, up)
	}
	if completed != nil {
		if completed.PointsReward > 0 {
			var fresh models.RewardProfile
			if err := s.DB.Where("id = ?", participation.RewardProfileID).First(&fresh).Error; err == nil {
				s.Events.Publish(models.EventPointsEarned, fresh.UserID, models.PointsEarned{
					UserID:         fresh.UserID,
					Amount:         completed.PointsReward,
					Type:           models.TxEarn,
					TotalPoints:    fresh.TotalPoints,
					LifetimePoints: fresh.LifetimePoints,
				})
			}
		}
		s.Events.Publish(models.EventChallengeCompleted, completed.UserID, *completed)
	}
	s.Badges.publishGrant(badgeGrant)
	return &participation, nil
}

// checkCompletion transitions an active participation to completed once every
// objective is met, crediting rewards exactly once inside the caller's
// transaction. Returns the event to publish after commit.
func (s *ChallengeService) checkCompletion(tx *gorm.DB, participation *models.ChallengeParticipation, challenge *models.Challenge) (*models.ChallengeCompleted, []models.LevelUp, *grantOutcome, error) {
	if participation.Status != models.ParticipationActive {
		return nil, nil, nil, nil
	}
	if !participation.ObjectivesMet(challenge.Objectives) {
		return nil, nil, nil, nil
	}

	now := time.Now()
	participation.Status = models.ParticipationCompleted
	participation.CompletedAt = &now

	var locked models.RewardProfile
	if err := lockForUpdate(tx).Where("id = ?", participation.RewardProfileID).First(&locked).Error; err != nil {
		return nil, nil, nil, err
	}

	if challenge.PointsReward > 0 {
		if _, err := s.Ledger.recordInTx(tx, &locked, RecordInput{
			Type:        models.TxEarn,
			Amount:      challenge.PointsReward,
			SourceKind:  models.SourceChallenge,
			SourceID:    challenge.ID,
			Description: fmt.Sprintf("Challenge completed: %s", challenge.Name),
		}); err != nil {
			return nil, nil, nil, err
		}
	}

	var levelUps []models.LevelUp
	if challenge.XPReward > 0 {
		levelUps = s.Leveling.ApplyXP(&locked, challenge.XPReward)
		if err := saveProgression(tx, &locked); err != nil {
			return nil, nil, nil, err
		}
	}

	// Optional badge reward rides on the badge engine; a missing badge is
	// isolated so challenge completion still commits.
	var badgeGrant *grantOutcome
	if challenge.BadgeRewardID != nil {
		var badge models.Badge
		if err := tx.Where("id = ?", *challenge.BadgeRewardID).First(&badge).Error; err != nil {
			log.Printf("[CHALLENGES] badge reward %s missing for challenge %s: %v", *challenge.BadgeRewardID, challenge.Slug, err)
		} else {
			badgeGrant, err = s.Badges.grantInTx(tx, &locked, &badge, map[string]any{"challenge_id": challenge.ID})
			if err != nil {
				log.Printf("[CHALLENGES] badge grant failed for challenge %s: %v", challenge.Slug, err)
				badgeGrant = nil
			}
		}
	}

	completed := &models.ChallengeCompleted{
		UserID:        locked.UserID,
		ChallengeName: challenge.Name,
		PointsReward:  challenge.PointsReward,
		XPReward:      challenge.XPReward,
	}
	return completed, levelUps, badgeGrant, nil
}

// Abandon moves an active participation to abandoned. Terminal states stay.
func (s *ChallengeService) Abandon(participationID string) (*models.ChallengeParticipation, error) {
	var participation models.ChallengeParticipation
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).Where("id = ?", participationID).First(&participation).Error; err != nil {
			return err
		}
		if participation.IsTerminal() {
			return ErrParticipationClosed
		}
		participation.Status = models.ParticipationAbandoned
		return tx.Save(&participation).Error
	})
	if err != nil {
		return nil, err
	}
	return &participation, nil
}

// ExpireOverdue fails every active participation of a challenge whose window
// has closed. Called by the expiry worker; returns the number failed.
func (s *ChallengeService) ExpireOverdue(now time.Time) (int64, error) {
	var expired []models.Challenge
	if err := s.DB.Where("ends_at IS NOT NULL AND ends_at < ?", now).Find(&expired).Error; err != nil {
		return 0, err
	}

	var failed int64
	for _, challenge := range expired {
		result := s.DB.Model(&models.ChallengeParticipation{}).
			Where("challenge_id = ? AND status = ?", challenge.ID, models.ParticipationActive).
			Update("status", models.ParticipationFailed)
		if result.Error != nil {
			return failed, result.Error
		}
		failed += result.RowsAffected
	}
	return failed, nil
}

// AdvanceForActivity increments matching objectives across the profile's
// active participations when a CRM activity arrives. Failures are logged per
// participation; activity processing never aborts on challenge errors.
func (s *ChallengeService) AdvanceForActivity(profile *models.RewardProfile, activityType string) {
	var participations []models.ChallengeParticipation
	err := s.DB.Where("reward_profile_id = ? AND status = ?", profile.ID, models.ParticipationActive).
		Find(&participations).Error
	if err != nil {
		log.Printf("[CHALLENGES] failed to load participations for profile %s: %v", profile.ID, err)
		return
	}

	now := time.Now()
	for _, participation := range participations {
		var challenge models.Challenge
		if err := s.DB.Where("id = ?", participation.ChallengeID).First(&challenge).Error; err != nil {
			log.Printf("[CHALLENGES] missing challenge %s: %v", participation.ChallengeID, err)
			continue
		}
		if !challenge.IsCurrent(now) {
			continue
		}

		for i, objective := range challenge.Objectives {
			if objective.ActivityType != activityType {
				continue
			}
			if _, err := s.UpdateProgress(participation.ID, i, 1, true); err != nil {
				log.Printf("[CHALLENGES] progress update failed for participation %s: %v", participation.ID, err)
			}
		}
	}
}

// ListCurrent returns challenges open for joining right now.
func (s *ChallengeService) ListCurrent(now time.Time) ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := s.DB.
		Where("is_active = ?", true).
		Where("starts_at IS NULL OR starts_at <= ?", now).
		Where("ends_at IS NULL OR ends_at >= ?", now).
		Order("sort_order").Order("name").
		Find(&challenges).Error
	return challenges, err
}

// ListParticipations returns a profile's runs, newest first.
func (s *ChallengeService) ListParticipations(profileID string) ([]models.ChallengeParticipation, error) {
	var participations []models.ChallengeParticipation
	err := s.DB.Where("reward_profile_id = ?", profileID).
		Order("joined_at DESC").
		Find(&participations).Error
	return participations, err
}
