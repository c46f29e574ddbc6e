package models

import (
	"time"
)

const (
	PledgeModeFree = "free"
	PledgeModePaid = "paid"

	// FreeCheerPoints is the fixed denomination of a free cheer.
	FreeCheerPoints = 10
)

// PaidCheerTiers is the allow-list of purchasable cheer denominations.
var PaidCheerTiers = []int64{100, 500, 1000, 5000}

// Pledge is one viewer cheer credited to a battle participant. The pledges
// table is append-only: rows are never updated or deleted, and every tally
// is recomputed by aggregation so audits reproduce the same totals.
type Pledge struct {
	ID          string  `json:"id" gorm:"primaryKey"`
	BattleID    string  `json:"battle_id" gorm:"not null;index"`
	SupporterID string  `json:"supporter_id" gorm:"not null;index"`
	CreatorID   string  `json:"creator_id" gorm:"not null;index"` // must be a battle participant
	Amount      int64   `json:"amount" gorm:"not null"`
	Mode        string  `json:"mode" gorm:"not null"` // free | paid
	PaymentRef  *string `json:"payment_reference,omitempty" gorm:"uniqueIndex"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// IsPaidCheerTier reports whether points is a purchasable denomination.
func IsPaidCheerTier(points int64) bool {
	for _, t := range PaidCheerTiers {
		if t == points {
			return true
		}
	}
	return false
}
