package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// HealthCheck is one dependency probed by /healthz.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Services groups what the router serves. Any field may be nil; the routes
// that need it then answer 503.
type Services struct {
	Assistant *service.Assistant
	Rules     *service.RulesResolver
	Quotes    *service.DeliveryQuoteEngine
	Checks    []HealthCheck
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, metrics *observability.Metrics, logger *zap.Logger, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id", "Traceparent"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Checks))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. 🍕 Mensagens
		// POST /v1/messages
		// =============================================
		r.Post("/messages", messageHandler(svc.Assistant, logger))

		// =============================================
		// 2. 👤 Cliente
		// GET /v1/customers/{phone}/profile
		// =============================================
		r.Get("/customers/{phone}/profile", getProfileHandler(svc.Assistant, logger))

		// =============================================
		// 3. 🛵 Entrega e adicionais
		// =============================================
		r.Post("/delivery/quote", deliveryQuoteHandler(svc.Quotes, logger))
		r.Post("/upsell", upsellHandler())

		// =============================================
		// 4. 📜 Regras por modo
		// =============================================
		r.Get("/rules/{mode}", getRulesHandler(svc.Rules, logger))
		r.Put("/rules/{mode}", putRulesHandler(svc.Rules, logger))
		r.Delete("/rules/{mode}", deleteRulesHandler(svc.Rules, logger))

		// =============================================
		// 5. 📊 Métricas
		// =============================================
		r.Get("/metrics/summary", metricsSummaryHandler(metrics))
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "assistant-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}
		for _, c := range checks {
			start := time.Now()
			err := c.Ping(ctx)
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name:        c.Name,
				Status:      status,
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func metricsSummaryHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Summary())
	}
}
