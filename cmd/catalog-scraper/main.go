package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/pricelab/catalog-scraper/internal/api"
	"github.com/pricelab/catalog-scraper/internal/browser"
	"github.com/pricelab/catalog-scraper/internal/config"
	"github.com/pricelab/catalog-scraper/internal/database"
	"github.com/pricelab/catalog-scraper/internal/events"
	"github.com/pricelab/catalog-scraper/internal/jobs"
	"github.com/pricelab/catalog-scraper/internal/pacing"
	"github.com/pricelab/catalog-scraper/internal/profile"
	"github.com/pricelab/catalog-scraper/internal/queue"
	"github.com/pricelab/catalog-scraper/internal/scraper"
)

func main() {
	if err := run(); err != nil {
		slog.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Name,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnLife: cfg.Database.MaxConnLife,
		MaxConnIdle: cfg.Database.MaxConnIdle,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	relay := database.NewRelay(db, redisClient, logger, database.RelayConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("relay stopped with error", "error", err)
		}
	}()

	factory, err := browser.NewFactory(&browser.Options{
		Headless:       cfg.Browser.Headless,
		SlowMo:         cfg.Browser.SlowMo,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      cfg.Browser.UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
		ProxyServer:    cfg.Browser.ProxyServer,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	defer factory.Close()

	runs := database.NewRunRepository(db)
	products := database.NewProductRepository(db)
	publisher := events.NewPublisher(db, cfg.Redis.Stream, logger)
	runQueue := queue.NewInMemoryQueue()
	registry := profile.Default()

	manager := jobs.NewManager(runs, products, runQueue, registry, logger)
	if err := manager.RequeuePending(ctx); err != nil {
		return fmt.Errorf("failed to re-enqueue pending runs: %w", err)
	}

	worker := jobs.NewWorker(runs, jobs.NewTxFinalizer(db, runs, products, publisher), runQueue, factory, registry, jobs.WorkerConfig{
		Engine: scraper.Config{
			NavigationTimeout:    cfg.Browser.Timeout,
			SaveErrorScreenshots: cfg.Scraper.SaveErrorScreenshots,
			// The service runs unattended; challenges can only be solved
			// through the CLI, which has a console to prompt on.
			AllowHumanSolve:    false,
			AbortOnRepeatBlock: cfg.Scraper.AbortOnRepeatBlock,
			SolveWait:          cfg.Scraper.SolveWait,
			SolvePollInterval:  cfg.Scraper.SolvePollInterval,
			ArtifactDir:        cfg.Scraper.ArtifactDir,
		},
		Pre:       pacing.Range{Min: cfg.Scraper.PreRequestMin, Max: cfg.Scraper.PreRequestMax},
		Inter:     pacing.Range{Min: cfg.Scraper.InterRequestMin, Max: cfg.Scraper.InterRequestMax},
		CookieDir: cfg.Scraper.CookieDir,
	}, logger)
	go worker.Start(ctx)

	handlers := api.NewHandlers(manager, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		health := map[string]interface{}{"status": "ok"}
		status := http.StatusOK

		if err := db.Ping(req.Context()); err != nil {
			health["status"] = "error"
			health["message"] = "database unreachable"
			status = http.StatusServiceUnavailable
		} else {
			pendingCount, _ := relay.GetPendingCount(req.Context())
			deadLetterCount, _ := relay.GetDeadLetterCount(req.Context())
			health["outbox"] = map[string]interface{}{
				"pending":     pendingCount,
				"dead_letter": deadLetterCount,
			}
			if pendingCount > 1000 {
				health["status"] = "warning"
				health["message"] = "high number of pending outbox events"
			}
		}

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(health)
	})

	handlers.Routes(r)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	if !cfg.Enabled {
		return slog.New(slog.DiscardHandler)
	}

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
