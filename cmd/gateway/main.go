package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/promptdeck/gateway/config"
	"github.com/promptdeck/gateway/internal/auth"
	"github.com/promptdeck/gateway/internal/cache"
	"github.com/promptdeck/gateway/internal/gateway"
	"github.com/promptdeck/gateway/internal/httpapi"
	"github.com/promptdeck/gateway/internal/ledger"
	"github.com/promptdeck/gateway/internal/plan"
	"github.com/promptdeck/gateway/internal/pricing"
	"github.com/promptdeck/gateway/internal/provider"
	"github.com/promptdeck/gateway/internal/provider/anthropic"
	"github.com/promptdeck/gateway/internal/provider/gemini"
	"github.com/promptdeck/gateway/internal/provider/openai"
	"github.com/promptdeck/gateway/internal/router"
	"github.com/promptdeck/gateway/internal/seeder"
	"github.com/promptdeck/gateway/internal/telemetry"
	"github.com/promptdeck/gateway/pkg/ratelimit"
)

const serviceName = "metering-gateway"

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Init logger + telemetry
	logger, err := telemetry.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	shutdownTracer, err := telemetry.InitTracer(serviceName, cfg)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}
	defer shutdownTracer()

	// 3. Connect PostgreSQL
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("failed to ping postgres", zap.Error(err))
	}
	logger.Info("PostgreSQL connected")

	// 4. Connect Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to ping redis", zap.Error(err))
	}
	logger.Info("Redis connected")

	// 5. Plan policy (limits are config: loaded once, read-only after)
	limits, err := plan.NewPostgresStore(pool).LoadLimits(ctx)
	if err != nil {
		logger.Fatal("failed to load plan limits", zap.Error(err))
	}
	policy := plan.NewPolicy(limits)

	// 6. Pricing
	table := pricing.NewTable(logger)
	calculator := pricing.NewCalculator(table)

	// 7. Usage ledger + reconciliation loop
	ledgerStore := ledger.NewPostgresStore(pool)
	reconciler := ledger.NewReconciler(ledgerStore, logger)
	usageLedger := ledger.New(ledgerStore, reconciler, logger)

	reconcileCtx, stopReconciler := context.WithCancel(ctx)
	defer stopReconciler()
	go reconciler.Run(reconcileCtx)

	// 8. Rate limiter
	limiter := ratelimit.New(ratelimit.NewRedisStore(rdb), map[string]ratelimit.Config{
		"default": {Limit: cfg.RateLimitDefault, Window: cfg.RateLimitDefaultWindow},
		"strict":  {Limit: cfg.RateLimitStrict, Window: cfg.RateLimitStrictWindow},
	})

	// 9. Response cache
	respCache := cache.New(rdb, cfg.CacheTTL, logger)

	// 10. Providers + quality router
	registry := provider.NewRegistry([]provider.Provider{
		openai.New(cfg.OpenAIAPIKey),
		anthropic.New(cfg.AnthropicAPIKey),
		gemini.New(cfg.GeminiAPIKey),
	})
	qualityRouter := router.New(table, policy)

	// 11. Gateway + HTTP handler
	gw := gateway.New(gateway.Deps{
		Limiter:         limiter,
		Policy:          policy,
		Ledger:          usageLedger,
		Cache:           respCache,
		Router:          qualityRouter,
		Invoker:         registry,
		Calculator:      calculator,
		ProviderTimeout: cfg.ProviderTimeout,
		Tracer:          otel.GetTracerProvider().Tracer(serviceName),
		Logger:          logger,
	})

	authStore := auth.NewPostgresStore(pool)
	authMiddleware := auth.NewMiddleware(authStore, rdb, logger)
	handler := httpapi.NewHandler(gw, usageLedger, respCache, policy, logger)

	// 12. Seed dev data if RUN_SEED=true
	if os.Getenv("RUN_SEED") == "true" {
		seeder.SeedTestAPIKey(ctx, authStore)
	}

	// 13. Routes
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"` + serviceName + `"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/v1/generate", handler.HandleGenerate)
		r.Get("/v1/usage", handler.HandleUsage)
		r.Post("/v1/admin/cache/invalidate", handler.HandleInvalidateCache)
	})

	// 14. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("metering gateway starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}
	stopReconciler()
	logger.Info("server stopped")
}
