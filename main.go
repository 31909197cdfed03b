package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tutorial-progress-system/handlers"
	"tutorial-progress-system/middleware"
	"tutorial-progress-system/models"
	"tutorial-progress-system/services"
	"tutorial-progress-system/storage/gormstore"
	"tutorial-progress-system/utils"
	"tutorial-progress-system/workers"

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
		BodyLimit: 1 * 1024 * 1024, // 1MB — this service only takes small JSON events
	})

	// 🔐 GLOBAL: only Gateway requests allowed — no exceptions
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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token",
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

	store := gormstore.New(db)
	if err := store.AutoMigrate(); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.SeedBadges(ctx, models.DefaultBadges); err != nil {
		log.Fatal("failed to seed badge catalog:", err)
	}

	// Certificate issuance artifacts go to R2 when configured; the engine
	// runs fine without it (the DB row stays the source of truth).
	var publisher services.CertificatePublisher
	r2Enabled, err := utils.InitR2()
	if err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}
	if r2Enabled {
		publisher = utils.NewR2CertificatePublisher()
		log.Println("✅ R2 certificate artifact publishing enabled")
	} else {
		log.Println("⚠️  R2 not configured — certificate artifacts disabled")
	}

	streakCfg := services.StreakConfig{
		BackdatedResets: strings.EqualFold(os.Getenv("STREAK_BACKDATED_RESETS"), "true"),
	}
	engine := services.NewEngine(store, publisher, streakCfg)

	// --- External collaborators ---
	profileSyncURL := os.Getenv("PROFILE_SYNC_URL")
	if profileSyncURL == "" {
		log.Fatal("PROFILE_SYNC_URL environment variable not set")
	}
	contentSyncURL := os.Getenv("CONTENT_SYNC_URL")
	if contentSyncURL == "" {
		log.Fatal("CONTENT_SYNC_URL environment variable not set")
	}
	serviceToken := os.Getenv("PROGRESS_SERVICE_TOKEN")
	authServiceURL := os.Getenv("AUTH_SERVICE_URL")
	if authServiceURL == "" {
		log.Fatal("AUTH_SERVICE_URL environment variable not set")
	}
	authClient := services.NewAuthServiceClient(authServiceURL, serviceToken)

	profileWorker := workers.NewProfileSyncWorker(store, profileSyncURL, "/api/v1/public/profiles", serviceToken)
	contentWorker := workers.NewContentSyncWorker(store, contentSyncURL, "/api/v1/public/projects", serviceToken)
	profileWorker.Start(ctx)
	contentWorker.Start(ctx)

	sched, err := services.StartStreakMaintenance(engine)
	if err != nil {
		log.Fatal("failed to start streak maintenance scheduler:", err)
	}
	defer func() { _ = sched.Shutdown() }()

	// ✅ Setup routes — every completion entry point funnels into the engine
	handlers.SetupProgressRoutes(app, engine, store)
	handlers.SetupBadgeRoutes(app, store, authClient)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Profile + Content sync workers running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
