package services

import (
	"time"

	"rewards-engine/models"

	"gorm.io/gorm"
)

// CatalogService answers what a profile may redeem and lists the catalog.
type CatalogService struct {
	DB *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{DB: db}
}

// CheckEligibility evaluates every redemption rule and accumulates all
// failing reasons; it never short-circuits, so a user below the level
// requirement and short of points sees both errors at once.
func (s *CatalogService) CheckEligibility(profile *models.RewardProfile, item *models.CatalogItem) (EligibilityResult, error) {
	return s.checkEligibilityTx(s.DB, profile, item, time.Now())
}

// checkEligibilityTx is the transaction-scoped form used by the redeem path
// for its commit-time re-validation.
func (s *CatalogService) checkEligibilityTx(tx *gorm.DB, profile *models.RewardProfile, item *models.CatalogItem, now time.Time) (EligibilityResult, error) {
	var reasons []string

	if !item.IsAvailable(now) {
		reasons = append(reasons, "Item is not available")
	}

	if profile.TotalPoints < item.PointsCost {
		reasons = append(reasons, "Insufficient points")
	}

	if item.MaxPerUser != nil {
		var count int64
		err := tx.Model(&models.Redemption{}).
			Where("reward_profile_id = ? AND catalog_item_id = ?", profile.ID, item.ID).
			Where("status != ?", models.RedemptionCancelled).
			Count(&count).Error
		if err != nil {
			return EligibilityResult{}, err
		}
		if count >= int64(*item.MaxPerUser) {
			reasons = append(reasons, "Maximum redemptions reached")
		}
	}

	if item.Requirements != nil {
		if item.Requirements.MinLevel != nil && profile.Level < *item.Requirements.MinLevel {
			reasons = append(reasons, "Level requirement not met")
		}
		if item.Requirements.BadgeID != nil {
			var count int64
			err := tx.Model(&models.UserBadge{}).
				Where("reward_profile_id = ? AND badge_id = ?", profile.ID, *item.Requirements.BadgeID).
				Count(&count).Error
			if err != nil {
				return EligibilityResult{}, err
			}
			if count == 0 {
				reasons = append(reasons, "Badge requirement not met")
			}
		}
	}

	return EligibilityResult{CanRedeem: len(reasons) == 0, Errors: reasons}, nil
}

// ListFilter narrows catalog listings.
type ListFilter struct {
	Category      *models.CatalogCategory
	AffordableFor *models.RewardProfile // only items the profile can pay for
	FeaturedOnly  bool
	IncludeHidden bool // admin: include inactive / out-of-window items
}

// List returns catalog items ordered for display.
func (s *CatalogService) List(filter ListFilter) ([]models.CatalogItem, error) {
	query := s.DB.Model(&models.CatalogItem{})

	if !filter.IncludeHidden {
		now := time.Now()
		query = query.
			Where("is_active = ?", true).
			Where("stock IS NULL OR stock > 0").
			Where("available_from IS NULL OR available_from <= ?", now).
			Where("available_until IS NULL OR available_until >= ?", now)
	}
	if filter.Category != nil {
		query = query.Where("category = ?", *filter.Category)
	}
	if filter.AffordableFor != nil {
		query = query.Where("points_cost <= ?", filter.AffordableFor.TotalPoints)
	}
	if filter.FeaturedOnly {
		query = query.Where("is_featured = ?", true)
	}

	var items []models.CatalogItem
	err := query.Order("sort_order").Order("name").Find(&items).Error
	return items, err
}

// Get returns one catalog item by id.
func (s *CatalogService) Get(itemID string) (*models.CatalogItem, error) {
	var item models.CatalogItem
	if err := s.DB.Where("id = ?", itemID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}
