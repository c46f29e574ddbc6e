package workers

import (
	"fmt"
	"testing"
	"time"

	"battle-arena-service/models"
	"battle-arena-service/services"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Battle{},
		&models.Pledge{},
		&models.Notification{},
		&models.ProcessedPaymentEvent{},
	))
	return db
}

func newTestNotifier(db *gorm.DB) Notifier {
	return services.NewNotificationService(db)
}

func seedBattle(t *testing.T, db *gorm.DB, mutate func(*models.Battle)) models.Battle {
	t.Helper()
	id := uuid.NewString()
	b := models.Battle{
		ID:               id,
		Slug:             "test-battle-" + id[:8],
		Title:            "Test Battle",
		ChallengerID:     "creator-a",
		OpponentID:       "creator-b",
		DurationMinutes:  5,
		Status:           models.BattleStatusScheduled,
		RequestedStartAt: time.Now().Add(time.Hour),
	}
	if mutate != nil {
		mutate(&b)
	}
	require.NoError(t, db.Create(&b).Error)
	return b
}

func seedPledge(t *testing.T, db *gorm.DB, battleID, creatorID string, amount int64) {
	t.Helper()
	p := models.Pledge{
		ID:          uuid.NewString(),
		BattleID:    battleID,
		SupporterID: "viewer-" + uuid.NewString()[:8],
		CreatorID:   creatorID,
		Amount:      amount,
		Mode:        models.PledgeModeFree,
	}
	require.NoError(t, db.Create(&p).Error)
}

func reload(t *testing.T, db *gorm.DB, id string) models.Battle {
	t.Helper()
	var b models.Battle
	require.NoError(t, db.First(&b, "id = ?", id).Error)
	return b
}
