package service

import (
	"context"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var reHouseNumber = regexp.MustCompile(`\d{1,5}`)

// DeliveryConfig holds the distance thresholds. SoftKM and MaxKM are
// independent of the fee tiers: MaxKM is only reported as a hint.
type DeliveryConfig struct {
	HasKey bool
	SoftKM float64
	MaxKM  float64
	Tiers  []domain.FeeTier
}

// DeliveryQuoteEngine turns an address into a serviceability decision.
// It never retries and never returns an error: every failure is a tagged
// quote with OK=false.
type DeliveryQuoteEngine struct {
	lookup  port.DistanceLookup
	cfg     DeliveryConfig
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewDeliveryQuoteEngine creates the engine. Zero thresholds take the
// defaults (10 km soft, 12 km hint) and nil tiers take DefaultFeeTiers.
func NewDeliveryQuoteEngine(lookup port.DistanceLookup, cfg DeliveryConfig, metrics *observability.Metrics, logger *zap.Logger) *DeliveryQuoteEngine {
	if cfg.SoftKM <= 0 {
		cfg.SoftKM = 10
	}
	if cfg.MaxKM <= 0 {
		cfg.MaxKM = 12
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = domain.DefaultFeeTiers
	}
	return &DeliveryQuoteEngine{lookup: lookup, cfg: cfg, metrics: metrics, logger: logger}
}

// Quote decides whether address can be served and at which fee.
func (e *DeliveryQuoteEngine) Quote(ctx context.Context, address string) *domain.DeliveryQuote {
	ctx, span := tracer.Start(ctx, "DeliveryQuoteEngine.Quote")
	defer span.End()

	q := e.quote(ctx, address)
	span.SetAttributes(
		attribute.Bool("quote.ok", q.OK),
		attribute.String("quote.reason", string(q.Reason)),
	)
	e.metrics.IncrQuote(quoteOutcome(q))
	return q
}

func (e *DeliveryQuoteEngine) quote(ctx context.Context, address string) *domain.DeliveryQuote {
	if !e.cfg.HasKey || e.lookup == nil {
		return e.fail(domain.ReasonNoKey)
	}
	if !PlausibleAddress(address) {
		return e.fail(domain.ReasonIncompleteAddress)
	}

	res, err := e.lookup.Lookup(ctx, address)
	if err != nil || res == nil {
		e.logger.Warn("delivery quote: distance lookup failed", zap.Error(err))
		e.metrics.IncrExternalError("distance")
		return e.fail(domain.ReasonQuoteFailed)
	}
	if math.IsNaN(res.KM) || math.IsInf(res.KM, 0) {
		return e.fail(domain.ReasonNoKM)
	}

	km := res.KM
	eta := res.ETAMinutes
	fee, ok := FeeFor(km, e.cfg.Tiers)
	within := ok
	soft := km <= e.cfg.SoftKM

	formatted := res.FormattedAddress
	if formatted == "" {
		formatted = address
	}

	q := &domain.DeliveryQuote{
		OK:                 true,
		Within:             &within,
		Soft:               &soft,
		KM:                 &km,
		ETAMin:             &eta,
		FormattedAddress:   formatted,
		ServiceLimitKMHint: e.cfg.MaxKM,
	}
	if ok {
		q.Fee = &fee
	}
	return q
}

func (e *DeliveryQuoteEngine) fail(reason domain.QuoteReason) *domain.DeliveryQuote {
	return &domain.DeliveryQuote{OK: false, Reason: reason, ServiceLimitKMHint: e.cfg.MaxKM}
}

// PlausibleAddress: trimmed text longer than 5 characters containing a
// number of up to 5 digits. The number is matched anywhere, so a longer
// digit run (phone, CEP) also passes and is left to the geocoder.
func PlausibleAddress(address string) bool {
	s := strings.ToLower(strings.TrimSpace(address))
	return utf8.RuneCountInString(s) > 5 && reHouseNumber.MatchString(s)
}

// FeeFor returns the fee of the first tier covering km, or false when km is
// past the last tier.
func FeeFor(km float64, tiers []domain.FeeTier) (float64, bool) {
	for _, t := range tiers {
		if km <= t.UpToKM {
			return t.Fee, true
		}
	}
	return 0, false
}

func quoteOutcome(q *domain.DeliveryQuote) string {
	switch {
	case !q.OK:
		return string(q.Reason)
	case q.Serviceable():
		return observability.OutcomeServiceable
	default:
		return observability.OutcomeOutOfRange
	}
}
