package models

import (
	"time"
)

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TxEarn       TransactionType = "earn"
	TxSpend      TransactionType = "spend"
	TxBonus      TransactionType = "bonus"
	TxAdjustment TransactionType = "adjustment"
	TxExpired    TransactionType = "expired"
	TxRefund     TransactionType = "refund"
)

// TransactionTypes lists every valid type
var TransactionTypes = []TransactionType{TxEarn, TxSpend, TxBonus, TxAdjustment, TxExpired, TxRefund}

// SourceKind names the subsystem a ledger entry originated from
type SourceKind string

const (
	SourceRedemption SourceKind = "redemption"
	SourceChallenge  SourceKind = "challenge"
	SourceBadge      SourceKind = "badge"
	SourceActivity   SourceKind = "activity"
	SourceManual     SourceKind = "manual"
)

// Transaction is one immutable ledger entry. Amount is signed: positive for
// earn/bonus/refund, negative for spend. BalanceAfter snapshots total_points
// right after the entry applied, so the ledger is auditable without replay.
type Transaction struct {
	ID              string `gorm:"primaryKey;type:uuid" json:"id"`
	RewardProfileID string `gorm:"index:idx_tx_profile_time;not null" json:"reward_profile_id"`

	Type         TransactionType `gorm:"type:varchar(16);not null;index" json:"type"`
	Amount       int             `gorm:"not null" json:"amount"`
	BalanceAfter int             `gorm:"not null" json:"balance_after"`

	Description string     `gorm:"type:text" json:"description"`
	SourceKind  SourceKind `gorm:"type:varchar(16);index:idx_tx_source" json:"source_kind"`
	SourceID    string     `gorm:"index:idx_tx_source" json:"source_id"`

	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index:idx_tx_profile_time" json:"created_at"`
}

// IsEarn reports whether the entry added spendable points.
func (t *Transaction) IsEarn() bool {
	return t.Amount > 0
}

// IsSpend reports whether the entry removed spendable points.
func (t *Transaction) IsSpend() bool {
	return t.Amount < 0
}

// IsExpired reports whether the entry's points have lapsed as of now.
func (t *Transaction) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}
