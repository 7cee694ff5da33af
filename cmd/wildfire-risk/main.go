package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/wildfire-risk-assessment/internal/api/http"
	"github.com/i474232898/wildfire-risk-assessment/internal/assessment"
	"github.com/i474232898/wildfire-risk-assessment/internal/assessment/providers"
	"github.com/i474232898/wildfire-risk-assessment/internal/config"
	"github.com/i474232898/wildfire-risk-assessment/internal/scheduler"
	"github.com/i474232898/wildfire-risk-assessment/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Cancelled on SIGINT/SIGTERM; bounds every assessment request.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	gemini := providers.NewGeminiProvider(httpClient, providers.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey.Unmask(),
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
	})
	if !gemini.Enabled() {
		log.Printf("INFO: GEMINI_API_KEY not set; assessments will use the fallback result")
	}

	// In-memory history with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	opts := []assessment.Option{
		assessment.WithTimeout(cfg.AssessmentTimeout),
		assessment.WithRecorder(memStore),
	}

	var pg *store.PostgresRecorder
	if dsn := cfg.DatabaseURL.Unmask(); dsn != "" {
		pg = openPostgres(ctx, dsn)
		if pg != nil {
			opts = append(opts, assessment.WithRecorder(pg))
		}
	}

	var trend assessment.TrendSource = store.NewStaticTrend()
	if cfg.TrendSource == config.TrendRecorded {
		if pg != nil {
			trend = pg
		} else {
			trend = memStore
		}
	}

	var observer httpapi.Observer
	if key := cfg.OpenWeatherAPIKey.Unmask(); key != "" {
		observer = providers.NewOpenWeatherObserver(httpClient, key)
	}

	// Starts the first assessment against the default parameters.
	orch := assessment.NewOrchestrator(ctx, gemini, opts...)

	sched := scheduler.New(ctx, cfg.RefreshInterval, orch)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "wildfire-risk-assessment",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// A synchronous assessment may take up to the provider timeout.
		WriteTimeout: cfg.AssessmentTimeout + 5*time.Second,
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
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "wildfire-risk-assessment",
			"inFlight": orch.InFlight(),
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Orchestrator: orch,
		Trend:        trend,
		History:      memStore,
		Observer:     observer,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: listening on :%s", cfg.Port)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
	if err := orch.Wait(shutdownCtx); err != nil {
		log.Printf("assessment still in flight at shutdown: %v", err)
	}
}

// openPostgres connects the optional durable recorder. Failures are logged and
// the service keeps running on the in-memory history alone.
func openPostgres(ctx context.Context, dsn string) *store.PostgresRecorder {
	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := store.OpenPostgres(connCtx, dsn)
	if err != nil {
		log.Printf("ERROR: postgres unavailable, recording in memory only: %v", err)
		return nil
	}
	rec := store.NewPostgresRecorder(db, 0)
	if err := rec.EnsureSchema(connCtx); err != nil {
		log.Printf("ERROR: postgres schema setup failed, recording in memory only: %v", err)
		_ = db.Close()
		return nil
	}
	return rec
}
