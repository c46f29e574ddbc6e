package services

import (
	"encoding/json"
	"log"

	"battle-arena-service/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationService persists per-user alerts for the external delivery
// channel to pick up. The battle engine only ever writes these.
type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

// Notify appends one alert row. data is marshaled into the JSON payload the
// client renders from.
func (s *NotificationService) Notify(userID, kind, title, message string, data map[string]interface{}) error {
	payload := ""
	if len(data) > 0 {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		payload = string(raw)
	}

	n := models.Notification{
		ID:      uuid.NewString(),
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Data:    payload,
	}
	if err := s.DB.Create(&n).Error; err != nil {
		log.Printf("❌ Failed to persist %s notification for user %s: %v", kind, userID, err)
		return err
	}
	return nil
}

// ListMyNotifications returns the caller's most recent alerts.
func (s *NotificationService) ListMyNotifications(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var notifications []models.Notification
	if err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(50).
		Find(&notifications).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch notifications"})
	}
	return c.JSON(notifications)
}
