package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"battle-arena-service/middleware"
	"battle-arena-service/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
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

func newTestQuota(t *testing.T) *RedisQuotaGate {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisQuotaGate(client)
}

type stubEligibility struct {
	eligible bool
	err      error
}

func (s stubEligibility) IsEligible(ctx context.Context, userID string) (bool, error) {
	return s.eligible, s.err
}

type stubPayments struct {
	lastReq PaymentRequest
	err     error
}

func (s *stubPayments) CreatePaymentRequest(ctx context.Context, pr PaymentRequest) (*PaymentRequestResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lastReq = pr
	return &PaymentRequestResult{
		PaymentID:  "pay_" + uuid.NewString()[:8],
		PaymentURL: "https://payments.example/checkout",
	}, nil
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

func doJSON(t *testing.T, app *fiber.App, method, url, userID string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func newBattleApp(t *testing.T, db *gorm.DB, eligibility EligibilityChecker) (*fiber.App, *BattleService) {
	t.Helper()
	notifier := NewNotificationService(db)
	svc := NewBattleService(db, newTestQuota(t), eligibility, notifier)

	app := fiber.New()
	app.Get("/battles", svc.ListBattles)
	app.Get("/battles/:id", svc.GetBattleStatus)
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Post("/battles", svc.RequestBattle)
	secured.Post("/battles/:id/accept", svc.AcceptBattle)
	secured.Post("/battles/:id/decline", svc.DeclineBattle)
	secured.Post("/battles/:id/start", svc.StartBattle)
	secured.Post("/battles/:id/finish", svc.FinishBattle)
	return app, svc
}
