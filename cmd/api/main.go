package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	_ "github.com/johnquangdev/meetscribe/docs"
	"github.com/johnquangdev/meetscribe/internal/adapter/handler"
	"github.com/johnquangdev/meetscribe/internal/adapter/repository"
	"github.com/johnquangdev/meetscribe/internal/infrastructure/cache"
	"github.com/johnquangdev/meetscribe/internal/infrastructure/database"
	"github.com/johnquangdev/meetscribe/internal/infrastructure/external/assemblyai"
	"github.com/johnquangdev/meetscribe/internal/infrastructure/storage"
	"github.com/johnquangdev/meetscribe/internal/usecase/ingest"
	"github.com/johnquangdev/meetscribe/internal/usecase/meeting"
	"github.com/johnquangdev/meetscribe/pkg/config"
	pkgvalidator "github.com/johnquangdev/meetscribe/pkg/validator"
)

// @title           Meetscribe Ingestion API
// @version         1.0
// @description     Audio ingestion socket and meeting transcript API

// @BasePath  /v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Echo instance
	e := echo.New()

	// Register validator for request validation
	e.Validator = pkgvalidator.New()

	// Configure Echo
	e.HideBanner = true
	e.HidePort = false

	// Custom logger format
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))

	// Recover from panics
	e.Use(middleware.Recover())

	// CORS middleware
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	log.Println("🔧 Initializing dependencies...")

	// Initialize Database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	// Apply migrations on boot only when explicitly enabled.
	// Production deployments run cmd/migrate instead.
	if cfg.Database.AutoMigrate {
		if cfg.IsProduction() {
			log.Fatalf("AutoMigrate is enabled in production. Disable DB_AUTO_MIGRATE and run cmd/migrate.")
		}
		if err := database.AutoMigrate(db, cfg.Database.Migrations); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	} else {
		log.Println("🔄 Skipping migrations on boot; use cmd/migrate")
	}

	// Initialize stats store
	stats := newStatsStore(cfg)
	defer stats.Close()

	// Initialize repositories
	log.Println("⚙️  Initializing repositories...")
	meetingRepo := repository.NewMeetingRepository(db)
	utteranceRepo := repository.NewUtteranceRepository(db)
	sessionRepo := repository.NewIngestSessionRepository(db)

	// Initialize ingest service
	log.Println("🎙️  Initializing ingest service...")
	ingestService := ingest.NewIngestService(meetingRepo, utteranceRepo, sessionRepo, stats, logger, ingest.Options{
		AckEveryFrames:  cfg.Ingest.AckEveryFrames,
		InterimFrames:   cfg.Transcribe.InterimFrames,
		FinalizeTimeout: cfg.Ingest.FinalizeAfter,
	})

	var audioStore meeting.AudioStore
	if cfg.Storage.Enabled {
		log.Println("🗄️  Connecting to object storage...")
		minioClient, err := storage.NewMinIOClient(context.Background(), &cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to initialize object storage: %v", err)
		}
		ingestService.WithArchive(minioClient)
		audioStore = minioClient
		log.Printf("✅ Session audio archived to bucket %s", cfg.Storage.BucketName)
	} else {
		log.Println("⚠️  Object storage disabled; session audio is discarded on close")
	}

	if cfg.Transcribe.Enabled {
		log.Println("🤖 Initializing AssemblyAI transcriber...")
		ingestService.WithTranscriber(assemblyai.NewTranscriber(cfg, logger))
	} else {
		log.Println("⚠️  Transcription disabled; no utterances will be derived")
	}

	// Initialize meeting service
	meetingService := meeting.NewMeetingService(meetingRepo, utteranceRepo, sessionRepo, audioStore, logger)

	// Initialize handlers
	log.Println("🚀 Initializing handlers...")
	healthHandler := handler.NewHealthHandler(cfg.Server.Environment, func(ctx context.Context) error {
		return database.Ping(ctx, db)
	}, logger)
	ingestHandler := handler.NewIngestHandler(ingestService, cfg.Ingest, cfg.Server.AllowedOrigins, logger)
	meetingHandler := handler.NewMeetingHandler(meetingService, logger)

	// Setup router with handlers
	log.Println("🛣️  Setting up routes...")
	router := handler.NewRouter(healthHandler, ingestHandler, meetingHandler, !cfg.IsProduction())
	router.Setup(e)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("🚀 Starting server on %s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		log.Printf("🔗 Health check: http://%s/health", addr)
		log.Printf("🔗 Ingest socket: ws://%s/ws/ingest", addr)

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by the HTTP server
	if err := ingestService.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Ingest sessions closed with errors: %v", err)
	}

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// newStatsStore uses Redis when configured and falls back to process memory
func newStatsStore(cfg *config.Config) cache.StatsStore {
	if cfg.Redis.Host == "" {
		log.Println("📦 Keeping ingest stats in memory")
		return cache.NewMemoryStatsStore(cfg.Redis.StatsTTL)
	}

	log.Println("📦 Connecting to Redis...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := cache.NewRedisStatsStore(ctx, cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.StatsTTL)
	if err != nil {
		log.Printf("⚠️  Redis unavailable (%v); keeping ingest stats in memory", err)
		return cache.NewMemoryStatsStore(cfg.Redis.StatsTTL)
	}
	log.Println("✅ Redis connected successfully")
	return store
}
