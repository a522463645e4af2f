package services

import (
	"fmt"
	"time"

	"rewards-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RedemptionService exchanges points for catalog items and runs the
// admin-side approval lifecycle.
type RedemptionService struct {
	DB      *gorm.DB
	Events  *EventService
	Ledger  *LedgerService
	Catalog *CatalogService
}

func NewRedemptionService(db *gorm.DB, events *EventService, ledger *LedgerService, catalog *CatalogService) *RedemptionService {
	return &RedemptionService{DB: db, Events: events, Ledger: ledger, Catalog: catalog}
}

// Redeem debits points, decrements stock and creates a pending Redemption as
// one atomic unit. Eligibility is re-validated inside the transaction with
// the profile and item rows locked, and the stock decrement is guarded by a
// conditional update, so two requests racing over the last unit cannot both
// succeed. A re-check failure caused by a concurrent commit surfaces as
// ErrConflict.
func (s *RedemptionService) Redeem(profileID, itemID string, deliveryInfo map[string]any, notes string) (*models.Redemption, error) {
	var redemption models.Redemption
	var itemName, userID string

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var profile models.RewardProfile
		if err := lockForUpdate(tx).Where("id = ?", profileID).First(&profile).Error; err != nil {
			return fmt.Errorf("profile %s not found: %w", profileID, err)
		}

		var item models.CatalogItem
		if err := lockForUpdate(tx).Where("id = ?", itemID).First(&item).Error; err != nil {
			return fmt.Errorf("catalog item %s not found: %w", itemID, err)
		}

		eligibility, err := s.Catalog.checkEligibilityTx(tx, &profile, &item, time.Now())
		if err != nil {
			return err
		}
		if !eligibility.CanRedeem {
			return &EligibilityError{Reasons: eligibility.Errors}
		}

		// Conditional decrement: fails the whole operation if another commit
		// drained the stock after the check above.
		if item.Stock != nil {
			result := tx.Model(&models.CatalogItem{}).
				Where("id = ? AND stock > 0", item.ID).
				Update("stock", gorm.Expr("stock - 1"))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrConflict
			}
		}

		redemptionID := uuid.NewString()
		if _, err := s.Ledger.recordInTx(tx, &profile, RecordInput{
			Type:        models.TxSpend,
			Amount:      -item.PointsCost,
			SourceKind:  models.SourceRedemption,
			SourceID:    redemptionID,
			Description: fmt.Sprintf("Redeemed: %s", item.Name),
		}); err != nil {
			if err == ErrInsufficientPoints {
				return ErrConflict
			}
			return err
		}

		redemption = models.Redemption{
			ID:              redemptionID,
			RewardProfileID: profile.ID,
			CatalogItemID:   item.ID,
			PointsSpent:     item.PointsCost,
			Status:          models.RedemptionPending,
			DeliveryInfo:    deliveryInfo,
			Notes:           notes,
		}
		if err := tx.Create(&redemption).Error; err != nil {
			return err
		}

		itemName = item.Name
		userID = profile.UserID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Events.Publish(models.EventRewardRedeemed, userID, models.RewardRedeemed{
		UserID:      userID,
		ItemName:    itemName,
		PointsSpent: redemption.PointsSpent,
		Status:      redemption.Status,
	})
	return &redemption, nil
}

// Approve moves a pending redemption to approved.
func (s *RedemptionService) Approve(redemptionID, adminID, notes string) (*models.Redemption, error) {
	return s.transition(redemptionID, models.RedemptionApproved, adminID, notes)
}

// Reject moves a pending redemption to rejected (terminal). Rejection
// happens before fulfilment, so the debited points are returned.
func (s *RedemptionService) Reject(redemptionID, adminID, reason string) (*models.Redemption, error) {
	return s.transitionWithRefund(redemptionID, models.RedemptionRejected, adminID, reason)
}

// Fulfill moves an approved redemption to fulfilled (terminal).
func (s *RedemptionService) Fulfill(redemptionID, adminID, notes string) (*models.Redemption, error) {
	return s.transition(redemptionID, models.RedemptionFulfilled, adminID, notes)
}

// Cancel moves a pending or approved redemption to cancelled (terminal) and
// refunds the debited points through a refund-type ledger entry.
func (s *RedemptionService) Cancel(redemptionID, adminID, reason string) (*models.Redemption, error) {
	return s.transitionWithRefund(redemptionID, models.RedemptionCancelled, adminID, reason)
}

// transition applies one lifecycle step, rejecting anything the state
// machine disallows with a TransitionError naming the attempt.
func (s *RedemptionService) transition(redemptionID string, to models.RedemptionStatus, adminID, notes string) (*models.Redemption, error) {
	var redemption models.Redemption
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).Where("id = ?", redemptionID).First(&redemption).Error; err != nil {
			return err
		}
		if !models.CanTransition(redemption.Status, to) {
			return &TransitionError{From: redemption.Status, To: to}
		}

		now := time.Now()
		redemption.Status = to
		redemption.ProcessedBy = &adminID
		redemption.ProcessedAt = &now
		if notes != "" {
			redemption.AdminNotes = notes
		}
		return tx.Save(&redemption).Error
	})
	if err != nil {
		return nil, err
	}
	return &redemption, nil
}

// transitionWithRefund is transition plus a refund ledger entry and a stock
// restore, in the same transaction.
func (s *RedemptionService) transitionWithRefund(redemptionID string, to models.RedemptionStatus, adminID, reason string) (*models.Redemption, error) {
	var redemption models.Redemption
	var profile models.RewardProfile

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).Where("id = ?", redemptionID).First(&redemption).Error; err != nil {
			return err
		}
		if !models.CanTransition(redemption.Status, to) {
			return &TransitionError{From: redemption.Status, To: to}
		}

		now := time.Now()
		redemption.Status = to
		redemption.ProcessedBy = &adminID
		redemption.ProcessedAt = &now
		if reason != "" {
			redemption.AdminNotes = reason
		}
		if err := tx.Save(&redemption).Error; err != nil {
			return err
		}

		if err := lockForUpdate(tx).Where("id = ?", redemption.RewardProfileID).First(&profile).Error; err != nil {
			return err
		}
		if _, err := s.Ledger.recordInTx(tx, &profile, RecordInput{
			Type:        models.TxRefund,
			Amount:      redemption.PointsSpent,
			SourceKind:  models.SourceRedemption,
			SourceID:    redemption.ID,
			Description: fmt.Sprintf("Refund for %s redemption", to),
		}); err != nil {
			return err
		}

		// Put the unit back for limited-stock items.
		var item models.CatalogItem
		if err := tx.Where("id = ?", redemption.CatalogItemID).First(&item).Error; err == nil && item.Stock != nil {
			if err := tx.Model(&models.CatalogItem{}).
				Where("id = ?", item.ID).
				Update("stock", gorm.Expr("stock + 1")).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Refund is an earn-shaped entry; announce the restored balance.
	s.Events.Publish(models.EventPointsEarned, profile.UserID, models.PointsEarned{
		UserID:         profile.UserID,
		Amount:         redemption.PointsSpent,
		Type:           models.TxRefund,
		TotalPoints:    profile.TotalPoints,
		LifetimePoints: profile.LifetimePoints,
	})
	return &redemption, nil
}

// History returns a profile's redemptions, newest first, optionally filtered
// by status.
func (s *RedemptionService) History(profileID string, status *models.RedemptionStatus, limit int) ([]models.Redemption, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	query := s.DB.Where("reward_profile_id = ?", profileID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var redemptions []models.Redemption
	err := query.Order("created_at DESC").Limit(limit).Find(&redemptions).Error
	return redemptions, err
}

// ListByStatus returns redemptions across all users for the admin queue.
func (s *RedemptionService) ListByStatus(status models.RedemptionStatus, limit int) ([]models.Redemption, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	var redemptions []models.Redemption
	err := s.DB.Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&redemptions).Error
	return redemptions, err
}
