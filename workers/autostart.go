package workers

import (
	"log"
	"time"

	"battle-arena-service/models"

	"gorm.io/gorm"
)

// RunAutostart flips due scheduled battles to live. Acceptance is required:
// an unaccepted invitation never starts automatically, it is left for
// autoexpire. The update is conditional on the current status so a
// concurrent manual start (or an overlapping run) resolves to one winner.
func RunAutostart(db *gorm.DB, notifier Notifier, now time.Time) (RunSummary, error) {
	var summary RunSummary

	var battles []models.Battle
	if err := db.Where("status = ? AND opponent_accepted = ? AND requested_start_at <= ?",
		models.BattleStatusScheduled, true, now).
		Find(&battles).Error; err != nil {
		return summary, err
	}

	for _, b := range battles {
		result := db.Model(&models.Battle{}).
			Where("id = ? AND status = ? AND opponent_accepted = ?", b.ID, models.BattleStatusScheduled, true).
			Updates(map[string]interface{}{
				"status":     models.BattleStatusLive,
				"start_time": now,
			})
		if result.Error != nil {
			log.Printf("[Autostart] Failed to start battle %s: %v", b.ID, result.Error)
			summary.record(b.ID, "error", result.Error)
			continue
		}
		if result.RowsAffected == 0 {
			// Lost the race to a manual start.
			summary.record(b.ID, "skipped", nil)
			continue
		}

		for _, uid := range []string{b.ChallengerID, b.OpponentID} {
			if err := notifier.Notify(uid, models.NotificationBattleStarted,
				"Battle started",
				"The battle is live. Cheers are open!",
				map[string]interface{}{"battle_id": b.ID}); err != nil {
				log.Printf("[Autostart] Notification failed for user %s: %v", uid, err)
			}
		}
		summary.record(b.ID, "started", nil)
	}

	return summary, nil
}
