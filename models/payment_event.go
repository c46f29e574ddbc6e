package models

import (
	"time"
)

// ProcessedPaymentEvent dedups payment-completion webhooks. The event id is
// the primary key; an insert that hits the existing row means the delivery
// is a replay and must not credit a second pledge.
type ProcessedPaymentEvent struct {
	EventID     string    `json:"event_id" gorm:"primaryKey"`
	ProcessedAt time.Time `json:"processed_at" gorm:"autoCreateTime"`
}
