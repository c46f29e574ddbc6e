package services

import (
	"errors"
	"log"

	"battle-arena-service/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettlementService consumes payment-completion webhooks. Delivery is
// at-least-once, so processing is idempotent per event id: the dedup row and
// the pledge are written in one transaction, and a replayed event id is
// acknowledged without crediting again. On any ambiguous state the rule is
// to not credit rather than risk crediting twice.
type SettlementService struct {
	DB            *gorm.DB
	WebhookSecret string
}

func NewSettlementService(db *gorm.DB, webhookSecret string) *SettlementService {
	return &SettlementService{DB: db, WebhookSecret: webhookSecret}
}

// HandlePaymentCompleted credits the paid pledge named by the event's
// metadata, exactly once per event id.
func (s *SettlementService) HandlePaymentCompleted(c *fiber.Ctx) error {
	if s.WebhookSecret == "" || c.Get("X-Webhook-Secret") != s.WebhookSecret {
		return c.Status(401).JSON(fiber.Map{"error": "invalid webhook secret"})
	}

	type Event struct {
		EventID  string `json:"event_id"`
		Amount   int64  `json:"amount"`
		Metadata struct {
			UserID    string `json:"user_id"`
			BattleID  string `json:"battle_id"`
			CreatorID string `json:"creator_id"`
			Points    int64  `json:"points"`
		} `json:"metadata"`
	}
	var evt Event
	if err := c.BodyParser(&evt); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if evt.EventID == "" || evt.Metadata.UserID == "" || evt.Metadata.BattleID == "" || evt.Metadata.CreatorID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "event_id and metadata identifiers are required"})
	}

	points := evt.Metadata.Points
	if points == 0 {
		points = evt.Amount
	}

	var outcome string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Claim the event id first; a no-op insert means this delivery is a
		// replay and the pledge already exists (or was deliberately skipped).
		claim := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.ProcessedPaymentEvent{EventID: evt.EventID})
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			outcome = "duplicate_ignored"
			return nil
		}

		var battle models.Battle
		if err := tx.First(&battle, "id = ?", evt.Metadata.BattleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("⚠️ [SETTLEMENT] Battle %s not found for event %s — not crediting", evt.Metadata.BattleID, evt.EventID)
				outcome = "ignored_unknown_battle"
				return nil
			}
			return err
		}
		if !battle.IsParticipant(evt.Metadata.CreatorID) {
			log.Printf("⚠️ [SETTLEMENT] Creator %s is not a participant of battle %s (event %s) — not crediting", evt.Metadata.CreatorID, battle.ID, evt.EventID)
			outcome = "ignored_invalid_creator"
			return nil
		}
		if !models.IsPaidCheerTier(points) {
			log.Printf("⚠️ [SETTLEMENT] Event %s carries non-tier amount %d — not crediting", evt.EventID, points)
			outcome = "ignored_invalid_amount"
			return nil
		}

		ref := evt.EventID
		pledge := models.Pledge{
			ID:          uuid.NewString(),
			BattleID:    battle.ID,
			SupporterID: evt.Metadata.UserID,
			CreatorID:   evt.Metadata.CreatorID,
			Amount:      points,
			Mode:        models.PledgeModePaid,
			PaymentRef:  &ref,
		}
		if err := tx.Create(&pledge).Error; err != nil {
			return err
		}
		outcome = "credited"
		return nil
	})
	if err != nil {
		log.Printf("❌ [SETTLEMENT] Processing event %s failed: %v", evt.EventID, err)
		return c.Status(500).JSON(fiber.Map{"error": "settlement processing failed"})
	}

	return c.JSON(fiber.Map{"status": outcome, "event_id": evt.EventID})
}
