package services

import (
	"errors"
	"log"
	"time"

	"battle-arena-service/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PledgeService owns the viewer cheer handlers. Free cheers append to the
// ledger synchronously behind the quota gate; paid cheers only create an
// external payment request — the ledger is credited by the settlement
// webhook once the payment actually completes.
type PledgeService struct {
	DB       *gorm.DB
	Quota    QuotaGate
	Payments PaymentRequester
}

func NewPledgeService(db *gorm.DB, quota QuotaGate, payments PaymentRequester) *PledgeService {
	return &PledgeService{DB: db, Quota: quota, Payments: payments}
}

func (s *PledgeService) liveBattle(c *fiber.Ctx, battleID string) (*models.Battle, error) {
	var battle models.Battle
	if err := s.DB.First(&battle, "id = ?", battleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(404).JSON(fiber.Map{"error": "battle not found"})
		}
		return nil, c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if battle.Status != models.BattleStatusLive {
		return nil, c.Status(400).JSON(fiber.Map{"error": "battle is not live"})
	}
	return &battle, nil
}

// CreateFreeCheer appends one fixed-denomination free pledge.
func (s *PledgeService) CreateFreeCheer(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	battleID := c.Params("id")

	type Req struct {
		CreatorID string `json:"creator_id"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}

	battle, err := s.liveBattle(c, battleID)
	if battle == nil {
		return err
	}
	if !battle.IsParticipant(req.CreatorID) {
		return c.Status(400).JSON(fiber.Map{"error": "creator_id is not a battle participant"})
	}

	// Per-(supporter, battle) window, consumed atomically so a concurrent
	// burst cannot slip past the boundary.
	actor := userID + ":" + battleID
	allowed, err := s.Quota.Allow(c.UserContext(), ActionFreeCheer, actor, FreeCheerHourlyLimit, time.Hour)
	if err != nil {
		log.Printf("❌ Quota gate error for supporter %s on battle %s: %v", userID, battleID, err)
		return c.Status(500).JSON(fiber.Map{"error": "quota check failed"})
	}
	if !allowed {
		return c.Status(429).JSON(fiber.Map{"error": "free cheer limit reached for this battle"})
	}

	pledge := models.Pledge{
		ID:          uuid.NewString(),
		BattleID:    battleID,
		SupporterID: userID,
		CreatorID:   req.CreatorID,
		Amount:      models.FreeCheerPoints,
		Mode:        models.PledgeModeFree,
	}
	if err := s.DB.Create(&pledge).Error; err != nil {
		log.Printf("ERROR creating free pledge on battle %s: %v", battleID, err)
		return c.Status(500).JSON(fiber.Map{"error": "DB insert failed"})
	}

	return c.Status(201).JSON(fiber.Map{
		"message": "cheer recorded",
		"pledge": fiber.Map{
			"id":         pledge.ID,
			"battle_id":  pledge.BattleID,
			"creator_id": pledge.CreatorID,
			"amount":     pledge.Amount,
			"mode":       pledge.Mode,
			"created_at": pledge.CreatedAt,
		},
	})
}

// InitiatePaidCheer validates the tier and creates the external payment
// request carrying the cheer identifiers as metadata. Nothing is written to
// the ledger here.
func (s *PledgeService) InitiatePaidCheer(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	battleID := c.Params("id")

	type Req struct {
		CreatorID string `json:"creator_id"`
		Points    int64  `json:"points"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if !models.IsPaidCheerTier(req.Points) {
		return c.Status(400).JSON(fiber.Map{"error": "points must be one of the purchasable tiers"})
	}

	battle, err := s.liveBattle(c, battleID)
	if battle == nil {
		return err
	}
	if !battle.IsParticipant(req.CreatorID) {
		return c.Status(400).JSON(fiber.Map{"error": "creator_id is not a battle participant"})
	}

	allowed, err := s.Quota.Allow(c.UserContext(), ActionPaidCheer, userID, PaidCheerHourlyLimit, time.Hour)
	if err != nil {
		log.Printf("❌ Quota gate error for supporter %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "quota check failed"})
	}
	if !allowed {
		return c.Status(429).JSON(fiber.Map{"error": "paid cheer limit reached"})
	}

	result, err := s.Payments.CreatePaymentRequest(c.UserContext(), PaymentRequest{
		UserID:    userID,
		BattleID:  battleID,
		CreatorID: req.CreatorID,
		Points:    req.Points,
	})
	if err != nil {
		log.Printf("❌ Payment request creation failed for supporter %s on battle %s: %v", userID, battleID, err)
		return c.Status(502).JSON(fiber.Map{"error": "payment request creation failed"})
	}

	return c.Status(201).JSON(fiber.Map{
		"message":     "payment request created — points are credited once the payment settles",
		"payment_id":  result.PaymentID,
		"payment_url": result.PaymentURL,
		"points":      req.Points,
		"creator_id":  req.CreatorID,
	})
}
