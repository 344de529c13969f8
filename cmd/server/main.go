// Taleweaver - AI Dungeon Master campaign server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/taleweaver/internal/api"
	"github.com/ashureev/taleweaver/internal/campaign"
	"github.com/ashureev/taleweaver/internal/config"
	"github.com/ashureev/taleweaver/internal/live"
	"github.com/ashureev/taleweaver/internal/llm"
	"github.com/ashureev/taleweaver/internal/metrics"
	"github.com/ashureev/taleweaver/internal/middleware"
	"github.com/ashureev/taleweaver/internal/store"
	"github.com/ashureev/taleweaver/internal/transcript"
	"github.com/ashureev/taleweaver/web"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "store", cfg.Store.Driver, "ai_provider", cfg.AI.Provider)

	// Initialize dependencies.
	repo, err := store.Open(cfg.Store.Driver, cfg.Store.DataPath, cfg.Store.DBPath)
	if err != nil {
		slog.Error("Failed to initialize campaign store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Campaign store ready", "driver", cfg.Store.Driver)

	provider, err := llm.New(context.Background(), cfg.LLM(), logger)
	if err != nil {
		slog.Error("Failed to initialize completion provider", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := provider.Close(); closeErr != nil {
			slog.Error("Failed to close completion provider", "error", closeErr)
		}
	}()
	slog.Info("Completion provider ready", "provider", provider.Name())

	transcriptLog, err := transcript.New(cfg.TranscriptLog(), logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = transcriptLog.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)

	// Initialize services.
	hub := live.NewHub(32)
	svc := campaign.NewService(repo, provider,
		campaign.WithPublisher(hub),
		campaign.WithTranscript(transcriptLog),
		campaign.WithLogger(logger),
	)

	router := api.NewRouter(api.RouterConfig{
		Campaigns:      svc,
		Store:          repo,
		ProviderName:   provider.Name(),
		Live:           live.NewHandler(hub, svc, cfg.HTTP.AllowedOrigins),
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RateLimiter:    middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst),
		Gatherer:       reg,
		Static:         web.Handler(),
	})

	// Provider calls can take tens of seconds; live feeds stay open, so no
	// WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
