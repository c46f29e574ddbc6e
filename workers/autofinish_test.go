package workers

import (
	"testing"
	"time"

	"battle-arena-service/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func liveBattle(t *testing.T, db *gorm.DB, durationMinutes int, startedAgo time.Duration) models.Battle {
	t.Helper()
	start := time.Now().Add(-startedAgo)
	return seedBattle(t, db, func(b *models.Battle) {
		b.Status = models.BattleStatusLive
		b.DurationMinutes = durationMinutes
		b.OpponentAccepted = true
		b.RequestedStartAt = start
		b.StartTime = &start
	})
}

func TestAutofinishDecisiveWin(t *testing.T) {
	db := newTestDB(t)
	b := liveBattle(t, db, 30, 31*time.Minute)
	seedPledge(t, db, b.ID, b.ChallengerID, 450)
	seedPledge(t, db, b.ID, b.OpponentID, 200)

	summary, err := RunAutofinish(db, newTestNotifier(db), time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Processed)
	require.Equal(t, "finished", summary.Results[0].Outcome)

	got := reload(t, db, b.ID)
	require.Equal(t, models.BattleStatusFinished, got.Status)
	require.NotNil(t, got.WinnerID)
	require.Equal(t, b.ChallengerID, *got.WinnerID)
	require.NotNil(t, got.EndTime)
	require.Equal(t, 0, got.OvertimeCount)

	var alerts int64
	db.Model(&models.Notification{}).Where("type = ?", models.NotificationBattleFinished).Count(&alerts)
	require.EqualValues(t, 2, alerts)
}

func TestAutofinishOpponentWin(t *testing.T) {
	db := newTestDB(t)
	b := liveBattle(t, db, 5, 6*time.Minute)
	seedPledge(t, db, b.ID, b.ChallengerID, 100)
	seedPledge(t, db, b.ID, b.OpponentID, 110)

	_, err := RunAutofinish(db, newTestNotifier(db), time.Now())
	require.NoError(t, err)

	got := reload(t, db, b.ID)
	require.Equal(t, models.BattleStatusFinished, got.Status)
	require.Equal(t, b.OpponentID, *got.WinnerID)
}

func TestAutofinishNotDue(t *testing.T) {
	db := newTestDB(t)
	b := liveBattle(t, db, 5, time.Minute)

	summary, err := RunAutofinish(db, newTestNotifier(db), time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Processed)
	require.Equal(t, "not_due", summary.Results[0].Outcome)

	got := reload(t, db, b.ID)
	require.Equal(t, models.BattleStatusLive, got.Status)
	require.Nil(t, got.WinnerID)
}

// A tie extends the battle twice, then breaks to the challenger no matter
// what the tallies say.
func TestAutofinishTieOvertimeChain(t *testing.T) {
	db := newTestDB(t)
	notifier := newTestNotifier(db)
	start := time.Now()
	b := seedBattle(t, db, func(b *models.Battle) {
		b.Status = models.BattleStatusLive
		b.DurationMinutes = 5
		b.OpponentAccepted = true
		b.RequestedStartAt = start
		b.StartTime = &start
	})
	seedPledge(t, db, b.ID, b.ChallengerID, 300)
	seedPledge(t, db, b.ID, b.OpponentID, 300)

	// First tie at the 5-minute mark: one overtime, still live.
	summary, err := RunAutofinish(db, notifier, start.Add(6*time.Minute))
	require.NoError(t, err)
	require.Equal(t, "overtime", summary.Results[0].Outcome)
	got := reload(t, db, b.ID)
	require.Equal(t, models.BattleStatusLive, got.Status)
	require.Equal(t, 1, got.OvertimeCount)
	require.Nil(t, got.WinnerID)

	// Second tie at 5+3 minutes: second overtime, still live.
	summary, err = RunAutofinish(db, notifier, start.Add(9*time.Minute))
	require.NoError(t, err)
	require.Equal(t, "overtime", summary.Results[0].Outcome)
	got = reload(t, db, b.ID)
	require.Equal(t, models.BattleStatusLive, got.Status)
	require.Equal(t, 2, got.OvertimeCount)

	// Third tie with both overtimes exhausted: forced challenger win.
	summary, err = RunAutofinish(db, notifier, start.Add(12*time.Minute))
	require.NoError(t, err)
	require.Equal(t, "finished", summary.Results[0].Outcome)
	got = reload(t, db, b.ID)
	require.Equal(t, models.BattleStatusFinished, got.Status)
	require.Equal(t, 2, got.OvertimeCount)
	require.Equal(t, b.ChallengerID, *got.WinnerID)
}

// A run working from a stale read must observe a benign no-op, not a second
// transition.
func TestAutofinishStaleReadIsNoOp(t *testing.T) {
	db := newTestDB(t)
	notifier := newTestNotifier(db)
	b := liveBattle(t, db, 5, 6*time.Minute)
	seedPledge(t, db, b.ID, b.ChallengerID, 50)

	stale := reload(t, db, b.ID)

	_, err := RunAutofinish(db, notifier, time.Now())
	require.NoError(t, err)
	require.Equal(t, models.BattleStatusFinished, reload(t, db, b.ID).Status)

	// Replaying the settlement against the stale snapshot does nothing.
	outcome, err := settleBattle(db, notifier, &stale, time.Now())
	require.NoError(t, err)
	require.Equal(t, "skipped", outcome)

	var alerts int64
	db.Model(&models.Notification{}).Where("type = ?", models.NotificationBattleFinished).Count(&alerts)
	require.EqualValues(t, 2, alerts)
}

// One bad row must not block settlement of the others.
func TestAutofinishRowIsolation(t *testing.T) {
	db := newTestDB(t)
	broken := seedBattle(t, db, func(b *models.Battle) {
		b.Status = models.BattleStatusLive
		b.OpponentAccepted = true
		b.StartTime = nil
	})
	due := liveBattle(t, db, 5, 10*time.Minute)
	seedPledge(t, db, due.ID, due.ChallengerID, 30)

	summary, err := RunAutofinish(db, newTestNotifier(db), time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, summary.Processed)

	outcomes := map[string]string{}
	for _, r := range summary.Results {
		outcomes[r.BattleID] = r.Outcome
	}
	require.Equal(t, "skipped_no_start_time", outcomes[broken.ID])
	require.Equal(t, "finished", outcomes[due.ID])
}
