package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/hospital-urgencias/clinops/internal/agentrun"
	"github.com/hospital-urgencias/clinops/internal/audit"
	"github.com/hospital-urgencias/clinops/internal/auth"
	"github.com/hospital-urgencias/clinops/internal/caretask"
	"github.com/hospital-urgencias/clinops/internal/chat"
	"github.com/hospital-urgencias/clinops/internal/knowledge"
	"github.com/hospital-urgencias/clinops/internal/quality"
	"github.com/hospital-urgencias/clinops/internal/rules"
	sharedauth "github.com/hospital-urgencias/clinops/internal/shared/auth"
	"github.com/hospital-urgencias/clinops/internal/shared/config"
	"github.com/hospital-urgencias/clinops/internal/shared/database"
	"github.com/hospital-urgencias/clinops/internal/shared/events"
	"github.com/hospital-urgencias/clinops/internal/shared/httpx"
	"github.com/hospital-urgencias/clinops/internal/shared/metrics"
	secmiddleware "github.com/hospital-urgencias/clinops/internal/shared/middleware"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	// Event streaming is optional: when KurrentDB is disabled or down the
	// platform runs without it.
	var bus events.Publisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		liveBus, err := events.NewBus(cfg.Events, logger)
		if err != nil {
			logger.Warn("event store unavailable, running without streaming", "error", err)
		} else {
			bus = liveBus
		}
	}
	defer bus.Close()

	// Module wiring.
	authRepo := auth.NewRepository(db.Pool)
	authService := auth.NewService(authRepo, cfg.Auth, logger)
	authHandler := auth.NewHandler(authService, cfg.Auth.SecretKey)

	runsRepo := agentrun.NewRepository(db.Pool)
	engine := agentrun.NewEngine(runsRepo, bus, logger)
	registry := agentrun.NewRegistry(triageEvaluator(cfg, logger))
	runsHandler := agentrun.NewHandler(engine, registry, runsRepo)

	auditRepo := audit.NewRepository(db.Pool)
	auditService := audit.NewService(auditRepo, runsRepo, bus, logger)
	auditHandler := audit.NewHandler(auditService)

	qualityService := quality.NewService(auditService)
	metrics.RegisterLazyGauges(quality.Gauges(qualityService, runsRepo))

	knowledgeRepo := knowledge.NewRepository(db.Pool)
	knowledgeService := knowledge.NewService(knowledgeRepo, knowledge.NewWhitelist(cfg.Chat.WebAllowedDomains), bus, logger)
	knowledgeHandler := knowledge.NewHandler(knowledgeService, knowledgeRepo)

	chatRepo := chat.NewRepository(db.Pool)
	var webSearcher *chat.WebSearcher
	if cfg.Chat.WebEnabled {
		webWhitelist := knowledge.NewWebWhitelist(cfg.Chat.WebAllowedDomains, cfg.Chat.WebStrictWhitelist)
		webSearcher = chat.NewWebSearcher(cfg.Chat.WebSearchURL, webWhitelist, time.Duration(cfg.Chat.WebTimeoutSeconds)*time.Second, logger)
	}
	var llmClient *chat.LLMClient
	if cfg.Chat.LLMEnabled {
		llmClient = chat.NewLLMClient(cfg.Chat, logger)
	}
	orchestrator := chat.NewOrchestrator(cfg.Chat, chatRepo, runsRepo, knowledgeService, webSearcher, llmClient, bus, logger)
	chatHandler := chat.NewHandler(orchestrator, chatRepo)

	taskRepo := caretask.NewRepository(db.Pool)
	taskHandler := caretask.NewHandler(taskRepo, runsRepo, engine, registry, auditHandler, chatHandler, qualityService.ScorecardHandler)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.RequestLogger(logger))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(metrics.Middleware)
	r.Use(secmiddleware.CORS(cfg.CORS.Origins))
	r.Use(secmiddleware.MaxBodyBytes(1 << 20))
	if cfg.Server.RateLimitRPS > 0 {
		limiter := secmiddleware.NewIPRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
		r.Use(limiter.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Get("/ready", readyHandler(db))
	r.Handle("/metrics", metrics.Handler())

	authenticate := sharedauth.Middleware(cfg.Auth.SecretKey, authService.LookupUser)
	r.Route(cfg.Server.APIPrefix, func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Mount("/care-tasks", taskHandler.Routes())
			r.Mount("/agents", runsHandler.Routes())
			r.Mount("/knowledge-sources", knowledgeHandler.Routes())
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		close(done)
	}()

	logger.Info("clinops listening",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"api_prefix", cfg.Server.APIPrefix,
		"triage_mode", cfg.Triage.Mode,
		"events_enabled", cfg.Events.Enabled,
	)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
	logger.Info("server stopped")
}

// triageEvaluator selects rules-only or hybrid triage. Hybrid consults the
// local LLM first and keeps the rule evaluator as its floor.
func triageEvaluator(cfg *config.Config, logger *slog.Logger) agentrun.TriageEvaluator {
	if cfg.Triage.Mode != "hybrid" {
		return func(_ context.Context, in rules.TriageInput) rules.TriageResult {
			return rules.EvaluateTriage(in)
		}
	}

	llm := rules.NewTriageLLMClient(
		cfg.Chat.LLMBaseURL,
		cfg.Chat.LLMModel,
		time.Duration(cfg.Chat.LLMTimeoutSeconds)*time.Second,
		logger,
	)
	return func(ctx context.Context, in rules.TriageInput) rules.TriageResult {
		return rules.HybridTriage(ctx, llm, in)
	}
}

func readyHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Health(r.Context()); err != nil {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "not ready",
				"database": err.Error(),
			})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{
			"status":   "ready",
			"database": "ready",
		})
	}
}
