package models

import (
	"time"
)

// CatalogCategory buckets redeemable items
type CatalogCategory string

const (
	CategoryDigital    CatalogCategory = "digital"
	CategoryPhysical   CatalogCategory = "physical"
	CategoryExperience CatalogCategory = "experience"
	CategoryDiscount   CatalogCategory = "discount"
	CategoryGeneral    CatalogCategory = "general"
)

// ItemRequirements gate redemption beyond the points cost.
type ItemRequirements struct {
	MinLevel *int    `json:"min_level,omitempty"`
	BadgeID  *string `json:"badge_id,omitempty"`
}

// CatalogItem is a redeemable entry in the rewards catalog.
type CatalogItem struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
	ImageURL    string `gorm:"type:text" json:"image_url"`

	Category   CatalogCategory `gorm:"type:varchar(16);default:'general';index" json:"category"`
	PointsCost int             `gorm:"default:0" json:"points_cost"`

	Stock        *int              `json:"stock,omitempty"`        // nil = unlimited
	MaxPerUser   *int              `json:"max_per_user,omitempty"` // nil = uncapped
	Requirements *ItemRequirements `gorm:"serializer:json" json:"requirements,omitempty"`

	AvailableFrom  *time.Time `json:"available_from,omitempty"`
	AvailableUntil *time.Time `json:"available_until,omitempty"`

	IsActive   bool `gorm:"default:true" json:"is_active"`
	IsFeatured bool `gorm:"default:false" json:"is_featured"`
	SortOrder  int  `gorm:"default:0" json:"sort_order"`

	Timestamps
}

// InStock reports whether any units remain (unlimited counts as in stock).
func (i *CatalogItem) InStock() bool {
	return i.Stock == nil || *i.Stock > 0
}

// IsAvailable reports whether the item can currently be redeemed at all:
// active, in stock, and inside its availability window.
func (i *CatalogItem) IsAvailable(now time.Time) bool {
	if !i.IsActive {
		return false
	}
	if !i.InStock() {
		return false
	}
	if i.AvailableFrom != nil && i.AvailableFrom.After(now) {
		return false
	}
	if i.AvailableUntil != nil && i.AvailableUntil.Before(now) {
		return false
	}
	return true
}
