package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"battle-arena-service/handlers"
	"battle-arena-service/middleware"
	"battle-arena-service/models"
	"battle-arena-service/services"
	"battle-arena-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐❗ GLOBAL: Only Gateway requests allowed (payment webhooks carry
	// their own shared secret and are exempted inside the middleware).
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Battle{},
		&models.Pledge{},
		&models.Notification{},
		&models.ProcessedPaymentEvent{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb, err := services.ConnectRedis(redisAddr)
	if err != nil {
		log.Fatal("failed to connect to redis:", err)
	}

	// --- External collaborators ---
	profileServiceURL := os.Getenv("PROFILE_SERVICE_URL")
	if profileServiceURL == "" {
		log.Fatal("PROFILE_SERVICE_URL environment variable not set")
	}
	paymentServiceURL := os.Getenv("PAYMENT_SERVICE_URL")
	if paymentServiceURL == "" {
		log.Fatal("PAYMENT_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("BATTLE_SERVICE_TOKEN")
	webhookSecret := os.Getenv("PAYMENT_WEBHOOK_SECRET")
	if webhookSecret == "" {
		log.Fatal("PAYMENT_WEBHOOK_SECRET environment variable not set")
	}

	quota := services.NewRedisQuotaGate(rdb)
	eligibility := services.NewProfileServiceClient(profileServiceURL, serviceToken)
	payments := services.NewPaymentServiceClient(paymentServiceURL, serviceToken)

	notificationService := services.NewNotificationService(db)
	battleService := services.NewBattleService(db, quota, eligibility, notificationService)
	pledgeService := services.NewPledgeService(db, quota, payments)
	settlementService := services.NewSettlementService(db, webhookSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workers.StartLifecycleScheduler(db, notificationService)

	handlers.SetupBattleRoutes(app, battleService, notificationService)
	handlers.SetupPledgeRoutes(app, pledgeService, settlementService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Battle lifecycle scheduler running (autoexpire/autostart 1m, autofinish 30s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Shutdown error: %v", err)
	}
}
