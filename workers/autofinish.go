package workers

import (
	"log"
	"time"

	"battle-arena-service/models"
	"battle-arena-service/services"

	"gorm.io/gorm"
)

// RunAutofinish settles live battles past their deadline: tally the cheer
// ledger, then either pick the higher side, extend into overtime on a tie,
// or — with both overtimes exhausted — break the tie to the challenger.
// Each battle is settled independently; one failure never blocks the rest.
func RunAutofinish(db *gorm.DB, notifier Notifier, now time.Time) (RunSummary, error) {
	var summary RunSummary

	var battles []models.Battle
	if err := db.Where("status = ?", models.BattleStatusLive).Find(&battles).Error; err != nil {
		return summary, err
	}

	for _, b := range battles {
		outcome, err := settleBattle(db, notifier, &b, now)
		if err != nil {
			log.Printf("[Autofinish] Failed to settle battle %s: %v", b.ID, err)
			summary.record(b.ID, "error", err)
			continue
		}
		summary.record(b.ID, outcome, nil)
	}

	return summary, nil
}

func settleBattle(db *gorm.DB, notifier Notifier, b *models.Battle, now time.Time) (string, error) {
	if b.StartTime == nil {
		// A live battle always has a start time; tolerate the bad row
		// rather than crash the run.
		return "skipped_no_start_time", nil
	}
	if now.Before(b.DeadlineAt()) {
		return "not_due", nil
	}

	challengerPts, opponentPts, err := services.BattlePointTotals(db, b)
	if err != nil {
		return "", err
	}

	switch {
	case challengerPts != opponentPts:
		winner := b.ChallengerID
		if opponentPts > challengerPts {
			winner = b.OpponentID
		}
		return finishBattle(db, notifier, b, now, winner, challengerPts, opponentPts)

	case b.OvertimeCount < models.MaxOvertimes:
		// Tie with headroom: extend the deadline by one overtime round.
		// Guarding on the overtime count read keeps an overlapping run
		// from double-extending.
		result := db.Model(&models.Battle{}).
			Where("id = ? AND status = ? AND overtime_count = ?", b.ID, models.BattleStatusLive, b.OvertimeCount).
			Update("overtime_count", b.OvertimeCount+1)
		if result.Error != nil {
			return "", result.Error
		}
		if result.RowsAffected == 0 {
			return "skipped", nil
		}
		return "overtime", nil

	default:
		// Both overtimes exhausted: the tie breaks to the challenger,
		// whatever the tallies say.
		return finishBattle(db, notifier, b, now, b.ChallengerID, challengerPts, opponentPts)
	}
}

func finishBattle(db *gorm.DB, notifier Notifier, b *models.Battle, now time.Time, winnerID string, challengerPts, opponentPts int64) (string, error) {
	result := db.Model(&models.Battle{}).
		Where("id = ? AND status = ? AND overtime_count = ?", b.ID, models.BattleStatusLive, b.OvertimeCount).
		Updates(map[string]interface{}{
			"status":    models.BattleStatusFinished,
			"end_time":  now,
			"winner_id": winnerID,
		})
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		// Another run (or a manual finish) got here first.
		return "skipped", nil
	}

	for _, uid := range []string{b.ChallengerID, b.OpponentID} {
		if err := notifier.Notify(uid, models.NotificationBattleFinished,
			"Battle finished",
			"The battle has ended.",
			map[string]interface{}{
				"battle_id":         b.ID,
				"winner_id":         winnerID,
				"challenger_points": challengerPts,
				"opponent_points":   opponentPts,
			}); err != nil {
			log.Printf("[Autofinish] Notification failed for user %s: %v", uid, err)
		}
	}
	return "finished", nil
}
