package models

import (
	"time"
)

// RedemptionStatus lifecycle:
// pending → approved → fulfilled (happy path)
// pending → rejected (terminal)
// pending|approved → cancelled (refund path, terminal)
type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionApproved  RedemptionStatus = "approved"
	RedemptionRejected  RedemptionStatus = "rejected"
	RedemptionFulfilled RedemptionStatus = "fulfilled"
	RedemptionCancelled RedemptionStatus = "cancelled"
)

// RedemptionStatuses lists every valid status
var RedemptionStatuses = []RedemptionStatus{
	RedemptionPending,
	RedemptionApproved,
	RedemptionRejected,
	RedemptionFulfilled,
	RedemptionCancelled,
}

// redemptionTransitions maps each status to the statuses reachable from it.
var redemptionTransitions = map[RedemptionStatus][]RedemptionStatus{
	RedemptionPending:  {RedemptionApproved, RedemptionRejected, RedemptionCancelled},
	RedemptionApproved: {RedemptionFulfilled, RedemptionCancelled},
}

// CanTransition reports whether a status change is allowed by the lifecycle.
func CanTransition(from, to RedemptionStatus) bool {
	for _, next := range redemptionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Redemption records one exchange of points for a catalog item.
type Redemption struct {
	ID              string `gorm:"primaryKey;type:uuid" json:"id"`
	RewardProfileID string `gorm:"index;not null" json:"reward_profile_id"`
	CatalogItemID   string `gorm:"index;not null" json:"catalog_item_id"`

	PointsSpent int              `gorm:"not null" json:"points_spent"` // cost snapshot at redemption time
	Status      RedemptionStatus `gorm:"type:varchar(16);default:'pending';index" json:"status"`

	DeliveryInfo map[string]any `gorm:"serializer:json" json:"delivery_info,omitempty"`
	Notes        string         `gorm:"type:text" json:"notes"`
	AdminNotes   string         `gorm:"type:text" json:"admin_notes"`

	ProcessedBy *string    `json:"processed_by,omitempty"` // admin id
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	Timestamps
}

// CanBeCancelled reports whether the redemption is still on the refund path.
func (r *Redemption) CanBeCancelled() bool {
	return r.Status == RedemptionPending || r.Status == RedemptionApproved
}

// IsTerminal reports whether the status can no longer change.
func (r *Redemption) IsTerminal() bool {
	return r.Status == RedemptionRejected || r.Status == RedemptionFulfilled || r.Status == RedemptionCancelled
}
