package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// MetricsSummary is returned by GET /v1/metrics/summary.
type MetricsSummary struct {
	MessagesTotal    int64            `json:"messagesTotal"`
	MessagesByMode   map[string]int64 `json:"messagesByMode"`
	QuotesByOutcome  map[string]int64 `json:"quotesByOutcome"`
	ServiceableRate  float64          `json:"serviceableRate"`
	RuleOverrideRate float64          `json:"ruleOverrideRate"`
	ProfileCacheRate float64          `json:"profileCacheHitRate"`
	ExternalErrors   int64            `json:"externalErrors"`
	Period           string           `json:"period"`
}
