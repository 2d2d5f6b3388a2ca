// Leadgate - chat gating and proposal relay server
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wazimu/leadgate/internal/agent"
	"github.com/wazimu/leadgate/internal/api"
	"github.com/wazimu/leadgate/internal/config"
	"github.com/wazimu/leadgate/internal/middleware"
	"github.com/wazimu/leadgate/internal/proposal"
	"github.com/wazimu/leadgate/internal/ratelimit"
	"github.com/wazimu/leadgate/internal/store"
	"github.com/wazimu/leadgate/internal/webhook"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

// run owns every resource it opens so deferred cleanup happens on all exit paths.
func run(logger *slog.Logger) error {
	// .env.local takes precedence; godotenv never overrides values already set.
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err == nil {
			slog.Info("Loaded environment file", "file", file)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	slog.Info("Starting server", "port", cfg.Port, "model", cfg.GeminiModel, "script_version", proposal.DefaultScript.Version)

	repo, err := store.Open(cfg.StateDSN, cfg.StatePath)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close state store", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		return fmt.Errorf("state store health check: %w", err)
	}
	slog.Info("State store ready")

	gemini, err := agent.NewGeminiClient(context.Background(), agent.Config{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	})
	if err != nil {
		return fmt.Errorf("initialize model client: %w", err)
	}
	model := agent.NewBreakerClient(gemini, agent.DefaultBreakerSettings(), logger)
	agentService := agent.NewService(model, proposal.DefaultScript.Prompt, cfg.Model.Timeout)

	limiter := ratelimit.New(repo, ratelimit.WithRetentionDays(cfg.Retention.BucketDays))
	dispatcher := webhook.NewDispatcher(repo, nil, webhook.Config{
		MaxAttempts:  cfg.Webhook.MaxAttempts,
		Backoff:      cfg.Webhook.Backoff,
		Timeout:      cfg.Webhook.Timeout,
		LogRetention: cfg.Retention.WebhookLogs,
	}, logger)

	if config.WebhookURL() == "" {
		slog.Warn("No webhook URL configured; proposal approvals will fail", "variables", config.WebhookEnvKeys)
	}

	chatHandler := api.NewChatHandler(limiter, agentService, proposal.DefaultScript, cfg.MaxBodyBytes)
	proposalHandler := api.NewProposalHandler(dispatcher, config.WebhookURL, proposal.DefaultScript, cfg.MaxBodyBytes)
	healthHandler := api.NewHealthHandler(repo)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.ClientIP(cfg.TrustProxy))
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins, []string{api.HeaderRateLimit, api.HeaderRateRemaining, api.HeaderRateReset}))

	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Burst(cfg.BurstLimit))
		chatHandler.RegisterRoutes(r)
		proposalHandler.RegisterRoutes(r)
	})

	// WriteTimeout covers one model call or a full webhook retry episode.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr, "trust_proxy", cfg.TrustProxy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	return nil
}
