package workers

import (
	"log"
	"time"

	"battle-arena-service/models"

	"gorm.io/gorm"
)

// RunAutoexpire cancels scheduled battles whose invitation was not accepted
// by one hour before the requested start. This guarantees an invitation
// cannot linger unresolved past its admission window.
func RunAutoexpire(db *gorm.DB, now time.Time) (RunSummary, error) {
	var summary RunSummary

	var battles []models.Battle
	deadline := now.Add(models.AcceptanceDeadline)
	if err := db.Where("status = ? AND opponent_accepted = ? AND requested_start_at <= ?",
		models.BattleStatusScheduled, false, deadline).
		Find(&battles).Error; err != nil {
		return summary, err
	}

	for _, b := range battles {
		result := db.Model(&models.Battle{}).
			Where("id = ? AND status = ? AND opponent_accepted = ?", b.ID, models.BattleStatusScheduled, false).
			Updates(map[string]interface{}{
				"status":        models.BattleStatusCancelled,
				"cancel_reason": models.CancelReasonNotApproved,
			})
		if result.Error != nil {
			log.Printf("[Autoexpire] Failed to cancel battle %s: %v", b.ID, result.Error)
			summary.record(b.ID, "error", result.Error)
			continue
		}
		if result.RowsAffected == 0 {
			// Accepted or declined between the read and the update.
			summary.record(b.ID, "skipped", nil)
			continue
		}
		summary.record(b.ID, "cancelled", nil)
	}

	return summary, nil
}
