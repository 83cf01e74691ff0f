package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"procurement/internal/app"
	"procurement/internal/config"
	"procurement/internal/handlers"
	"procurement/internal/jobs"
	"procurement/internal/logging"
	"procurement/internal/middleware"
	"procurement/internal/preflight"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Procurement Assistant Server...")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s, DB: %s/%s)", cfg.Port, cfg.MongoDBName, cfg.MongoCollection)

	ctx := context.Background()

	application, err := app.New(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("❌ Failed to initialize assistant: %v", err)
	}
	defer application.Close()

	if err := application.Mongo.Initialize(ctx, cfg.MongoCollection); err != nil {
		log.Printf("⚠️ Failed to create indexes: %v", err)
	}

	checker := preflight.NewChecker(cfg, application.Collection(), application.ChatLog)
	if preflight.HasFailures(checker.RunAll(ctx)) {
		log.Fatal("❌ Pre-flight checks failed")
	}

	// Background jobs
	jobScheduler, err := jobs.NewJobScheduler()
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	if err := jobScheduler.Register(jobs.StatsRefreshJobName, jobs.NewStatsRefreshJob(application.Stats, cfg.StatsRefreshInterval)); err != nil {
		log.Fatalf("❌ %v", err)
	}
	go func() {
		// Warm the statistics cache without delaying startup
		if err := jobScheduler.RunNow(ctx, jobs.StatsRefreshJobName); err != nil {
			log.Printf("⚠️ Initial statistics refresh failed: %v", err)
		}
	}()
	jobScheduler.Start()

	// Initialize Fiber app
	fiberApp := fiber.New(fiber.Config{
		AppName:      "Procurement Assistant",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // a run makes up to AGENT_MAX_ITERATIONS model calls
		IdleTimeout:  2 * time.Minute,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Middleware
	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())

	// Prometheus metrics middleware
	prom := fiberprometheus.New("procurement")
	prom.RegisterAt(fiberApp, "/metrics")
	fiberApp.Use(prom.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept," + middleware.SessionHeader,
		ExposeHeaders:    middleware.SessionHeader,
		AllowCredentials: allowedOrigins != "*",
	}))

	rateLimitConfig := middleware.LoadRateLimitConfig(cfg)
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/%v, Chat=%d/%v",
		rateLimitConfig.GlobalAPIMax, rateLimitConfig.GlobalAPIExpiration,
		rateLimitConfig.ChatMax, rateLimitConfig.ChatExpiration,
	)
	fiberApp.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	handlers.RegisterRoutes(fiberApp, handlers.Routes{
		Chat:        handlers.NewChatHandler(application.Assistant, application.Metrics),
		Info:        handlers.NewInfoHandler(application.Stats, application.Assistant, application.Examples),
		Health:      handlers.NewHealthHandler(application.Mongo),
		ChatLimiter: middleware.ChatRateLimiter(rateLimitConfig),
	})

	log.Printf("✅ Server ready on port %s", cfg.Port)
	log.Printf("💬 Chat endpoint: http://localhost:%s/api/chat", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("🛑 Shutting down server...")

		if err := jobScheduler.Stop(); err != nil {
			log.Printf("⚠️ Error stopping jobs: %v", err)
		}

		if err := fiberApp.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := fiberApp.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
