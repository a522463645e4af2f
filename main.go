package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rewards-engine/handlers"
	"rewards-engine/middleware"
	"rewards-engine/models"
	"rewards-engine/services"
	"rewards-engine/utils"
	"rewards-engine/workers"

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

	app := fiber.New(fiber.Config{
		BodyLimit: 25 * 1024 * 1024, // 25MB, image uploads only
	})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.RewardProfile{},
		&models.Transaction{},
		&models.BadgeCategory{},
		&models.Badge{},
		&models.UserBadge{},
		&models.Challenge{},
		&models.ChallengeParticipation{},
		&models.CatalogItem{},
		&models.Redemption{},
		&models.Leaderboard{},
		&models.LeaderboardEntry{},
		&models.ActivityEvent{},
		&models.RewardEvent{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	cfg := services.LoadConfig()

	eventService := services.NewEventService(db)
	profileService := services.NewProfileService(db)
	ledgerService := services.NewLedgerService(db, eventService)
	leveling := services.NewLevelingCalculator(cfg)
	streakService := services.NewStreakService(db, eventService, cfg)
	badgeService := services.NewBadgeService(db, eventService, ledgerService, leveling)
	challengeService := services.NewChallengeService(db, eventService, ledgerService, leveling, badgeService)
	catalogService := services.NewCatalogService(db)
	redemptionService := services.NewRedemptionService(db, eventService, ledgerService, catalogService)
	leaderboardService := services.NewLeaderboardService(db, leveling)
	activityService := services.NewActivityService(
		db, profileService, ledgerService, leveling,
		streakService, badgeService, challengeService, eventService, cfg,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go workers.PollChallengeExpiry(ctx, challengeService, 1*time.Minute)

	sched := leaderboardService.StartRebuildScheduler()
	if sched != nil {
		defer func() { _ = sched.Shutdown() }()
	}

	// ✅ Setup routes — enforced Gateway auth + consistent /s/ prefix
	handlers.SetupProfileRoutes(app, profileService, ledgerService, leveling, activityService, eventService)
	handlers.SetupCatalogRoutes(app, profileService, catalogService, redemptionService)
	handlers.SetupBadgeRoutes(app, profileService, badgeService)
	handlers.SetupChallengeRoutes(app, profileService, challengeService)
	handlers.SetupLeaderboardRoutes(app, profileService, leaderboardService)
	handlers.SetupAdminRoutes(app, profileService, ledgerService, activityService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Challenge expiry polling running (every 1m)")
	log.Println("✅ Leaderboard rebuild scheduler running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.Shutdown()
}
