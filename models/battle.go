package models

import (
	"time"
)

// Battle statuses. Transitions only move forward:
// scheduled → live | cancelled, live → live (overtime) | finished.
const (
	BattleStatusScheduled = "scheduled"
	BattleStatusLive      = "live"
	BattleStatusFinished  = "finished"
	BattleStatusCancelled = "cancelled"
)

// AllowedDurations are the only accepted battle lengths (minutes).
var AllowedDurations = []int{5, 30, 60}

const (
	// OvertimeExtensionMinutes is added to the deadline per overtime round.
	OvertimeExtensionMinutes = 3
	// MaxOvertimes caps consecutive tie extensions; the tie after the last
	// one is broken in favor of the challenger.
	MaxOvertimes = 2
	// AcceptanceDeadline is how long before the requested start an
	// invitation must be accepted to survive autoexpire.
	AcceptanceDeadline = time.Hour

	CancelReasonNotApproved = "not_approved_before_deadline"
)

// Battle is a timed 1v1 competition between two creators, funded by viewer cheers.
type Battle struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	Slug             string    `json:"slug" gorm:"uniqueIndex"`
	Title            string    `json:"title"`
	ChallengerID     string    `json:"challenger_id" gorm:"not null;index"`
	OpponentID       string    `json:"opponent_id" gorm:"not null;index"`
	DurationMinutes  int       `json:"duration_minutes" gorm:"not null"`
	Status           string    `json:"status" gorm:"default:'scheduled';index"`
	RequestedStartAt time.Time `json:"requested_start_at" gorm:"not null;index"`

	OpponentAccepted       bool       `json:"opponent_accepted" gorm:"default:false"`
	OpponentResponseReason string     `json:"opponent_response_reason,omitempty"`
	OpponentRespondedAt    *time.Time `json:"opponent_responded_at,omitempty"`

	// StartTime/EndTime are stamped exactly once, on the transition to
	// live and finished respectively.
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	OvertimeCount int        `json:"overtime_count" gorm:"default:0"`
	WinnerID      *string    `json:"winner_id,omitempty"`
	CancelReason  string     `json:"cancel_reason,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Calculated fields (not stored in DB)
	ChallengerPoints int64 `json:"challenger_points" gorm:"-"`
	OpponentPoints   int64 `json:"opponent_points" gorm:"-"`
}

// IsParticipant reports whether userID is one of the two competitors.
func (b *Battle) IsParticipant(userID string) bool {
	return userID == b.ChallengerID || userID == b.OpponentID
}

// DeadlineAt is the moment the battle is due to finish given the overtime
// rounds applied so far. Only meaningful once StartTime is set.
func (b *Battle) DeadlineAt() time.Time {
	if b.StartTime == nil {
		return time.Time{}
	}
	mins := b.DurationMinutes + b.OvertimeCount*OvertimeExtensionMinutes
	return b.StartTime.Add(time.Duration(mins) * time.Minute)
}

// IsAllowedDuration reports whether minutes is a valid battle length.
func IsAllowedDuration(minutes int) bool {
	for _, d := range AllowedDurations {
		if d == minutes {
			return true
		}
	}
	return false
}
