package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/config"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/handler"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/cache"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/client"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/postgres"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/redisstore"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/rulesfs"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/port"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid .env: %v\n", err)
	}

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, "pizzaria-assistant")
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("rules_store", cfg.RulesStore),
		zap.String("rules_dir", cfg.RulesDir),
		zap.Bool("maps_key", cfg.MapsAPIKey != ""),
		zap.Bool("composer", cfg.OpenAIAPIKey != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.String("timezone", cfg.Timezone),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "pizzaria-assistant")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	profileCache := cache.New[*domain.CustomerProfile](cfg.CacheTTL)
	defer profileCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()

	var (
		profiles port.ProfileStore
		ruleStore port.RuleOverrideStore
		checks    []handler.HealthCheck
	)

	switch cfg.StoreBackend {
	case "postgres":
		if cfg.DatabaseURL == "" {
			logger.Fatal("STORE_BACKEND=postgres requires DATABASE_URL")
		}
		pg, err := postgres.Open(startCtx, cfg.DatabaseURL,
			resilience.NewCircuitBreaker("postgres", logger), resilienceCfg, logger)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pg.Close()
		if err := pg.Migrate(startCtx); err != nil {
			logger.Fatal("failed to migrate postgres schema", zap.Error(err))
		}
		logger.Info("using Postgres as data backend")
		profiles, ruleStore = pg, pg
		checks = append(checks, handler.HealthCheck{Name: "postgres", Ping: pg.Ping})
	default:
		if cfg.SupabaseURL == "" {
			logger.Fatal("STORE_BACKEND=supabase requires SUPABASE_URL")
		}
		sb := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase", logger),
			resilienceCfg,
			logger,
		)
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		profiles, ruleStore = sb, sb
		checks = append(checks, handler.HealthCheck{Name: "supabase", Ping: sb.Ping})
	}

	if cfg.RulesStore == "redis" {
		rs, err := redisstore.Connect(startCtx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rs.Close()
		logger.Info("rule overrides kept in Redis")
		ruleStore = rs
		checks = append(checks, handler.HealthCheck{Name: "redis", Ping: rs.Ping})
	}

	var lookup port.DistanceLookup
	if cfg.MapsAPIKey != "" {
		lookup = client.NewMapsClient(
			httpClient,
			client.DefaultMapsBaseURL,
			cfg.MapsAPIKey,
			cfg.RestaurantOrigin,
			cfg.AddressRegionHint,
			resilience.NewCircuitBreaker("google-maps", logger),
			resilienceCfg,
		)
	} else {
		logger.Warn("GOOGLE_MAPS_API_KEY not set: every delivery quote answers NO_KEY")
	}

	var composer port.ReplyComposer
	if cfg.OpenAIAPIKey != "" {
		composer = client.NewOpenAIComposer(cfg.OpenAIAPIKey, cfg.OpenAIModel, "",
			resilience.NewCircuitBreaker("openai", logger), resilienceCfg)
		logger.Info("reply composer enabled", zap.String("model", cfg.OpenAIModel))
	}

	// --- Services ---
	rules := service.NewRulesResolver(ruleStore, rulesfs.NewDir(cfg.RulesDir), metrics, logger)
	quotes := service.NewDeliveryQuoteEngine(lookup, service.DeliveryConfig{
		HasKey: cfg.MapsAPIKey != "",
		SoftKM: cfg.DeliverySoftKM,
		MaxKM:  cfg.DeliveryMaxKM,
	}, metrics, logger)

	assistantSvc := service.NewAssistant(
		profiles,
		profileCache,
		service.NewProfileAggregator(cfg.AnonSalt),
		rules,
		quotes,
		composer,
		resilience.NewBulkhead(cfg.MaxConcurrency),
		service.AssistantConfig{HistoryWindow: cfg.HistoryWindow, Location: cfg.Location()},
		metrics,
		logger,
	)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Assistant: assistantSvc,
		Rules:     rules,
		Quotes:    quotes,
		Checks:    checks,
	}, metrics, logger, cfg.CORSOrigins)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
