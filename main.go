package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"squad-clash-system/handlers"
	"squad-clash-system/middleware"
	"squad-clash-system/models"
	"squad-clash-system/services"
	"squad-clash-system/utils"
	"squad-clash-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024, // media submissions
	})

	// Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000"
	}
	origins := strings.Split(allowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID",
		AllowCredentials: true,
		MaxAge:           86400,
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
		&models.Squad{},
		&models.Membership{},
		&models.DailyEvent{},
		&models.Submission{},
		&models.MemberStats{},
		&models.MissPenalty{},
		&models.Power{},
		&models.ActiveTarget{},
		&models.Crown{},
		&models.Headline{},
		&models.Rivalry{},
		&models.Challenge{},
		&models.ChallengeVote{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.InitMediaStore(); err != nil {
		log.Fatal("failed to initialize media store:", err)
	}

	notifier := workers.NewNotifier(os.Getenv("NOTIFY_WEBHOOK_URL"))

	squadService := services.NewSquadService(db)
	statsService := services.NewStatsService(db)
	submissionService := services.NewSubmissionService(db)
	powerService := services.NewPowerService(db)
	crownService := services.NewCrownService(db)
	judgeService := services.NewJudgeService(db)
	eventService := services.NewEventService(db, submissionService, statsService, powerService, crownService, judgeService)

	powerService.Notify = notifier
	crownService.Notify = notifier
	judgeService.Notify = notifier
	eventService.Notify = notifier

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go notifier.Start(ctx)

	sched, err := services.StartLifecycleScheduler(eventService, statsService, judgeService)
	if err != nil {
		log.Fatal("failed to start lifecycle scheduler:", err)
	}
	defer func() { _ = sched.Shutdown() }()

	handlers.SetupSquadRoutes(app, squadService, statsService, crownService, powerService)
	handlers.SetupEventRoutes(app, eventService, submissionService, squadService)
	handlers.SetupPowerRoutes(app, powerService)
	handlers.SetupCrownRoutes(app, crownService)
	handlers.SetupChallengeRoutes(app, judgeService, statsService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Lifecycle scheduler running (open/close/finalize, sweeps)")
	log.Println("✅ Change notifier running (fire-and-forget)")

	<-ctx.Done()
	log.Println("Shutting down server...")
}
