package handlers

import (
	"battle-arena-service/middleware"
	"battle-arena-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupBattleRoutes(app *fiber.App, battleService *services.BattleService, notificationService *services.NotificationService) {
	// 🔓 Public read-only views
	app.Get("/battles", battleService.ListBattles)
	app.Get("/battles/:id", battleService.GetBattleStatus)

	// 🔐 Authenticated routes
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Battle lifecycle
	secured.Post("/battles", battleService.RequestBattle)
	secured.Post("/battles/:id/accept", battleService.AcceptBattle)
	secured.Post("/battles/:id/decline", battleService.DeclineBattle)
	secured.Post("/battles/:id/start", battleService.StartBattle)
	secured.Post("/battles/:id/finish", battleService.FinishBattle)

	// Own alerts
	secured.Get("/users/me/notifications", notificationService.ListMyNotifications)
}
