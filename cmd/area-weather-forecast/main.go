package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/area-weather-forecast/internal/api/http"
	"github.com/i474232898/area-weather-forecast/internal/config"
	"github.com/i474232898/area-weather-forecast/internal/forecast"
	"github.com/i474232898/area-weather-forecast/internal/metrics"
	"github.com/i474232898/area-weather-forecast/internal/scheduler"
	"github.com/i474232898/area-weather-forecast/internal/session"
	"github.com/i474232898/area-weather-forecast/internal/store"
	"github.com/i474232898/area-weather-forecast/internal/weather"
	"github.com/i474232898/area-weather-forecast/internal/weather/providers"
)

func main() {
	// Load configuration (also reads .env).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	recorder := metrics.NewRecorder()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Providers in fallback order, each with backoff + circuit breaker.
	provs := []weather.HistoricalProvider{
		providers.NewOpenMeteoProvider(httpClient),
	}
	if cfg.WeatherAPIKey != "" {
		provs = append(provs, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey))
	}

	service := weather.NewService(provs, cfg.FetchWorkers, recorder)
	engine := forecast.NewEngine(forecast.Options{
		Changepoints:  cfg.ForecastChangepoints,
		IntervalWidth: cfg.ForecastIntervalWidth,
		FitTimeout:    cfg.ForecastFitTimeout,
	})

	actionCfg := session.Config{
		Recorder: recorder,
		GridSize: cfg.GridSize,
	}
	if cfg.GeocoderAPIKey != "" {
		actionCfg.Geocoder = providers.NewGoogleGeocoder(cfg.GeocoderAPIKey)
	} else {
		log.Printf("INFO: GEOCODER_API_KEY not set; city lookups are disabled")
	}
	actions := session.NewActions(service, engine, actionCfg)

	sessions := store.NewSessions(cfg.SessionMax, cfg.SessionTTL)

	// Scheduler that evicts idle sessions.
	sched := scheduler.New(sessions, cfg.SessionSweepInterval, recorder)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "area-weather-forecast",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Fits and area fetches can take a while.
		WriteTimeout: cfg.ForecastFitTimeout + 30*time.Second,
		ErrorHandler: httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "area-weather-forecast",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(recorder.Handler()))

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Sessions:    sessions,
		Actions:     actions,
		DefaultDays: cfg.ForecastDefaultDays,
		MaxDays:     cfg.ForecastMaxDays,
		Gauge:       recorder,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: listening on :%s with %d weather providers", cfg.Port, len(provs))

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
