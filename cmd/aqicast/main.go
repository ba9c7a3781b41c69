package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"

	httpapi "github.com/airsense/aqicast/internal/api/http"
	"github.com/airsense/aqicast/internal/cache"
	"github.com/airsense/aqicast/internal/config"
	"github.com/airsense/aqicast/internal/model"
	"github.com/airsense/aqicast/internal/pipeline"
	"github.com/airsense/aqicast/internal/scheduler"
	"github.com/airsense/aqicast/internal/series"
	"github.com/airsense/aqicast/internal/sources"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Model artifacts: each loads loudly but independently; endpoints that
	// depend on a missing artifact report unavailability instead of crashing.
	registry := model.LoadRegistry(cfg.ModelDir)

	// Static baseline is the permanent left edge of every assembled series.
	baseline, err := series.LoadBaseline(cfg.BaselinePath)
	if err != nil {
		log.Fatalf("failed to load static baseline: %v", err)
	}
	log.Printf("static baseline loaded: %d hourly observations", baseline.Len())

	// Shared HTTP client for outbound source calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	weatherSrc := sources.NewWeatherArchiveClient(httpClient, cfg.Latitude, cfg.Longitude)
	airSrc := sources.NewAirQualityClient(httpClient, cfg.Latitude, cfg.Longitude)

	filler := pipeline.NewGapFiller(weatherSrc, airSrc, registry, cfg.MaxGap)
	liveCache := cache.NewLiveCache(baseline, filler, cfg.CachePath, cfg.CacheTTL)

	// Core service orchestrating models, cache and baseline.
	service := pipeline.NewService(registry, liveCache, baseline)

	// Scheduler that keeps the cache warm.
	sched := scheduler.New(cfg.RefreshInterval, service)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "aqicast",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "aqicast",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)

	// Start server with graceful shutdown
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
