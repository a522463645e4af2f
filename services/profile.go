package services

import (
	"errors"
	"time"

	"rewards-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileService owns RewardProfile rows. All balance/level/streak mutations
// go through the ledger, leveling and streak services; nothing else writes
// those counters directly.
type ProfileService struct {
	DB *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{DB: db}
}

// GetOrCreate returns the profile for a CRM user, creating a zeroed one on
// first touch. Safe under concurrent first activity: the insert ignores the
// unique-index conflict and the row is re-read.
func (s *ProfileService) GetOrCreate(userID string) (*models.RewardProfile, error) {
	var profile models.RewardProfile
	err := s.DB.Where("user_id = ?", userID).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := models.RewardProfile{
		ID:     uuid.NewString(),
		UserID: userID,
		Level:  1,
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&fresh).Error; err != nil {
		return nil, err
	}

	// Re-read: either our insert or the concurrent winner's row.
	if err := s.DB.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByUserID returns the profile without creating one.
func (s *ProfileService) GetByUserID(userID string) (*models.RewardProfile, error) {
	var profile models.RewardProfile
	if err := s.DB.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// HasBadge reports whether the profile earned a specific badge.
func (s *ProfileService) HasBadge(profileID, badgeID string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.UserBadge{}).
		Where("reward_profile_id = ? AND badge_id = ?", profileID, badgeID).
		Count(&count).Error
	return count > 0, err
}

// ListActive returns profiles with activity in the last N days.
func (s *ProfileService) ListActive(days int) ([]models.RewardProfile, error) {
	var profiles []models.RewardProfile
	since := time.Now().AddDate(0, 0, -days)
	err := s.DB.Where("last_activity_at >= ?", since).
		Order("last_activity_at DESC").
		Find(&profiles).Error
	return profiles, err
}

// TouchActivity stamps last_activity_at. Called from the activity entry point.
func (s *ProfileService) TouchActivity(tx *gorm.DB, profile *models.RewardProfile, at time.Time) error {
	profile.LastActivityAt = &at
	return tx.Model(&models.RewardProfile{}).
		Where("id = ?", profile.ID).
		Update("last_activity_at", at).Error
}
