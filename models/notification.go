package models

import (
	"time"
)

// Notification types emitted by the battle engine.
const (
	NotificationBattleRequested = "battle_requested"
	NotificationBattleAccepted  = "battle_accepted"
	NotificationBattleScheduled = "battle_scheduled"
	NotificationBattleDeclined  = "battle_declined"
	NotificationBattleStarted   = "battle_started"
	NotificationBattleFinished  = "battle_finished"
	NotificationBattleCancelled = "battle_cancelled"
)

// Notification is a per-user alert persisted for later delivery by the
// external notification channel. This service only writes them (and lets a
// user list their own).
type Notification struct {
	ID      string `json:"id" gorm:"primaryKey"`
	UserID  string `json:"user_id" gorm:"not null;index"`
	Type    string `json:"type" gorm:"not null"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty" gorm:"type:text"` // JSON payload for the client
	Read    bool   `json:"read" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
