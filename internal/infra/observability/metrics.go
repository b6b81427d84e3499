package observability

import (
	"time"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Quote outcomes besides the failure reasons.
const (
	OutcomeServiceable = "SERVICEABLE"
	OutcomeOutOfRange  = "OUT_OF_RANGE"
)

// Metrics holds all Prometheus metrics for the assistant.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	messages        *prometheus.CounterVec
	segments        *prometheus.CounterVec
	quotes          *prometheus.CounterVec
	ruleResolutions *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assistant_operation_duration_seconds",
				Help:    "Duration of operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_external_errors_total",
				Help: "Total errors from external collaborators.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_messages_total",
				Help: "Inbound messages handled, by interaction mode.",
			},
			[]string{"mode"},
		),
		segments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_profile_segments_total",
				Help: "Segments assigned on profile updates.",
			},
			[]string{"segment"},
		),
		quotes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_delivery_quotes_total",
				Help: "Delivery quotes by outcome.",
			},
			[]string{"outcome"},
		),
		ruleResolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_rule_resolutions_total",
				Help: "Rule text resolutions by source (override, file, cache).",
			},
			[]string{"source"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

func (m *Metrics) IncrMessage(mode string) {
	m.messages.WithLabelValues(mode).Inc()
}

func (m *Metrics) IncrSegment(segment string) {
	m.segments.WithLabelValues(segment).Inc()
}

// IncrQuote counts a delivery quote by outcome: a failure reason,
// OutcomeServiceable or OutcomeOutOfRange.
func (m *Metrics) IncrQuote(outcome string) {
	m.quotes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrRuleResolution(source string) {
	m.ruleResolutions.WithLabelValues(source).Inc()
}

// Summary returns a snapshot of the counters for GET /v1/metrics/summary.
// Prometheus counters are cumulative, so the period is always all_time.
func (m *Metrics) Summary() *domain.MetricsSummary {
	byMode := make(map[string]int64)
	var total float64
	for _, mode := range domain.AllModes() {
		v := getCounterValue(m.messages, string(mode))
		total += v
		if v > 0 {
			byMode[string(mode)] = int64(v)
		}
	}

	outcomes := []string{
		OutcomeServiceable, OutcomeOutOfRange,
		string(domain.ReasonNoKey), string(domain.ReasonIncompleteAddress),
		string(domain.ReasonNoKM), string(domain.ReasonQuoteFailed),
	}
	byOutcome := make(map[string]int64)
	var quotes float64
	for _, o := range outcomes {
		v := getCounterValue(m.quotes, o)
		quotes += v
		if v > 0 {
			byOutcome[o] = int64(v)
		}
	}

	serviceableRate := float64(0)
	if quotes > 0 {
		serviceableRate = getCounterValue(m.quotes, OutcomeServiceable) / quotes
	}

	overrides := getCounterValue(m.ruleResolutions, "override")
	resolutions := overrides +
		getCounterValue(m.ruleResolutions, "file") +
		getCounterValue(m.ruleResolutions, "cache")
	overrideRate := float64(0)
	if resolutions > 0 {
		overrideRate = overrides / resolutions
	}

	hits := getCounterValue(m.cacheHits, "profile")
	misses := getCounterValue(m.cacheMisses, "profile")
	cacheRate := float64(0)
	if hits+misses > 0 {
		cacheRate = hits / (hits + misses)
	}

	var externalErrors float64
	for _, svc := range []string{"distance", "profile-store", "rules-store", "composer"} {
		externalErrors += getCounterValue(m.externalErrors, svc)
	}

	return &domain.MetricsSummary{
		MessagesTotal:    int64(total),
		MessagesByMode:   byMode,
		QuotesByOutcome:  byOutcome,
		ServiceableRate:  serviceableRate,
		RuleOverrideRate: overrideRate,
		ProfileCacheRate: cacheRate,
		ExternalErrors:   int64(externalErrors),
		Period:           "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
