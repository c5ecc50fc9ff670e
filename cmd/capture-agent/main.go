package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/johnquangdev/meetscribe/internal/capture/control"
	"github.com/johnquangdev/meetscribe/internal/capture/coordinator"
	"github.com/johnquangdev/meetscribe/internal/capture/host"
	"github.com/johnquangdev/meetscribe/internal/capture/transport"
	"github.com/johnquangdev/meetscribe/internal/capture/worker"
	"github.com/johnquangdev/meetscribe/internal/infrastructure/cache"
	"github.com/johnquangdev/meetscribe/pkg/config"
	pkgvalidator "github.com/johnquangdev/meetscribe/pkg/validator"
)

func main() {
	// Load configuration
	cfg, err := config.LoadAgent()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	log.Println("🔧 Initializing capture agent...")

	// Host capabilities
	handleStore := cache.NewMemoryStore()
	defer handleStore.Close()
	handles := host.NewHandleRegistry(handleStore, 0)
	tabs := host.NewDevToolsResolver(cfg.DevToolsURL)

	// The worker is provisioned on the first start and reused afterwards
	workerHost := worker.NewHost(func() (*worker.Worker, error) {
		log.Println("🎙️  Provisioning capture worker...")
		source := host.NewFFmpegSource(cfg.FFmpegPath, cfg.AudioInput, cfg.AudioSource, handles, logger)
		dialer := transport.NewDialer(cfg.HandshakeTimeout, logger)
		return worker.New(source, host.TimesliceEncoder{}, dialer, worker.Options{
			Format:    cfg.Format,
			Timeslice: cfg.Timeslice(),
		}, logger.Named("worker")), nil
	})
	defer workerHost.Close()

	coord := coordinator.New(tabs, workerHost, handles, coordinator.Options{
		TrustedOrigin:   cfg.TrustedOrigin,
		AnnotateSource:  cfg.AnnotateSource,
		RejectDuplicate: cfg.RejectDuplicate,
	}, logger.Named("coordinator"))

	// Control listener
	e := echo.New()
	e.Validator = pkgvalidator.New()
	e.HideBanner = true
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))
	e.Use(middleware.Recover())

	control.NewHandler(coord, logger).Register(e)

	if !isLoopback(cfg.ControlAddr) {
		log.Printf("⚠️  Control listener %s is not a loopback address", cfg.ControlAddr)
	}

	go func() {
		log.Printf("🚀 Control listener on http://%s", cfg.ControlAddr)
		log.Printf("🔗 Trusted origin: %s", cfg.TrustedOrigin)
		if err := e.Start(cfg.ControlAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start control listener: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down capture agent...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := coord.StopCapture(ctx); err != nil {
		log.Printf("⚠️  Capture stopped with errors: %v", err)
	}

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Control listener forced to shutdown: %v", err)
	}

	log.Println("✅ Capture agent stopped gracefully")
}

func newLogger(cfg *config.AgentConfig) (*zap.Logger, error) {
	if strings.EqualFold(cfg.Environment, "production") {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func isLoopback(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if h == "localhost" {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
