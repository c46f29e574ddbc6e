package handlers

import (
	"battle-arena-service/middleware"
	"battle-arena-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPledgeRoutes(app *fiber.App, pledgeService *services.PledgeService, settlementService *services.SettlementService) {
	// Settlement webhook — authenticated by its own shared secret, not the
	// Gateway token.
	app.Post("/webhooks/payments", settlementService.HandlePaymentCompleted)

	// 🔐 Authenticated cheer routes
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Post("/battles/:id/cheers/free", pledgeService.CreateFreeCheer)
	secured.Post("/battles/:id/cheers/paid", pledgeService.InitiatePaidCheer)
}
