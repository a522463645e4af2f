package services

import (
	"fmt"
	"log"
	"time"

	"rewards-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerService is the only writer of total_points / lifetime_points. Every
// balance change produces an immutable Transaction row with a balance_after
// snapshot.
type LedgerService struct {
	DB     *gorm.DB
	Events *EventService
}

func NewLedgerService(db *gorm.DB, events *EventService) *LedgerService {
	return &LedgerService{DB: db, Events: events}
}

// RecordInput describes one ledger entry to append.
type RecordInput struct {
	Type        models.TransactionType
	Amount      int // signed: positive = earn, negative = spend
	SourceKind  models.SourceKind
	SourceID    string
	Description string
	ExpiresAt   *time.Time
}

// Record appends an entry for a profile inside its own transaction, locking
// the profile row so concurrent earn/spend for the same user cannot lose
// updates. Emits PointsEarned after commit for positive amounts.
func (s *LedgerService) Record(profileID string, in RecordInput) (*models.Transaction, error) {
	var entry *models.Transaction
	var profile models.RewardProfile

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			Where("id = ?", profileID).
			First(&profile).Error; err != nil {
			return fmt.Errorf("profile %s not found: %w", profileID, err)
		}

		var err error
		entry, err = s.recordInTx(tx, &profile, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishEarn(&profile, entry)
	return entry, nil
}

// recordInTx appends an entry against an already-locked profile row. Used by
// sibling services composing ledger writes into larger atomic units
// (redemption, challenge completion, badge grant). The caller is responsible
// for publishing PointsEarned after its transaction commits.
func (s *LedgerService) recordInTx(tx *gorm.DB, profile *models.RewardProfile, in RecordInput) (*models.Transaction, error) {
	if in.Amount < 0 && profile.TotalPoints+in.Amount < 0 {
		// Affordability is a precondition; the balance never goes below zero.
		return nil, ErrInsufficientPoints
	}

	profile.TotalPoints += in.Amount
	// Refunds restore the balance but are not new lifetime earnings.
	if in.Amount > 0 && in.Type != models.TxRefund {
		profile.LifetimePoints += in.Amount
	}

	if err := tx.Model(&models.RewardProfile{}).
		Where("id = ?", profile.ID).
		Updates(map[string]any{
			"total_points":    profile.TotalPoints,
			"lifetime_points": profile.LifetimePoints,
		}).Error; err != nil {
		return nil, err
	}

	entry := &models.Transaction{
		ID:              uuid.NewString(),
		RewardProfileID: profile.ID,
		Type:            in.Type,
		Amount:          in.Amount,
		BalanceAfter:    profile.TotalPoints,
		Description:     in.Description,
		SourceKind:      in.SourceKind,
		SourceID:        in.SourceID,
		ExpiresAt:       in.ExpiresAt,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// publishEarn emits PointsEarned for positive entries. Fire-and-forget.
func (s *LedgerService) publishEarn(profile *models.RewardProfile, entry *models.Transaction) {
	if entry == nil || entry.Amount <= 0 {
		return
	}
	s.Events.Publish(models.EventPointsEarned, profile.UserID, models.PointsEarned{
		UserID:         profile.UserID,
		Amount:         entry.Amount,
		Type:           entry.Type,
		TotalPoints:    profile.TotalPoints,
		LifetimePoints: profile.LifetimePoints,
	})
}

// Reconcile verifies that the cached balance equals the sum of non-expired
// ledger entries. A mismatch is an invariant violation: logged for
// investigation, never silently corrected. Expired entries are excluded
// lazily; there is no sweep that rewrites them.
func (s *LedgerService) Reconcile(profileID string) error {
	var profile models.RewardProfile
	if err := s.DB.Where("id = ?", profileID).First(&profile).Error; err != nil {
		return err
	}

	var sum int64
	now := time.Now()
	if err := s.DB.Model(&models.Transaction{}).
		Where("reward_profile_id = ?", profileID).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error; err != nil {
		return err
	}

	if int(sum) != profile.TotalPoints {
		log.Printf("[LEDGER] reconciliation mismatch for profile %s: ledger=%d cached=%d",
			profileID, sum, profile.TotalPoints)
		return fmt.Errorf("%w: ledger=%d cached=%d", ErrReconciliationMismatch, sum, profile.TotalPoints)
	}
	return nil
}

// History returns a profile's ledger entries, newest first, optionally
// filtered by type.
func (s *LedgerService) History(profileID string, typ *models.TransactionType, limit int) ([]models.Transaction, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	query := s.DB.Where("reward_profile_id = ?", profileID)
	if typ != nil {
		query = query.Where("type = ?", *typ)
	}

	var entries []models.Transaction
	err := query.Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
