package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/assistant")

// AssistantConfig tunes the orchestrator.
type AssistantConfig struct {
	// HistoryWindow is how many recent history messages form the history text.
	HistoryWindow int
	// Location is the restaurant's calendar, used for day-of-week decisions.
	Location *time.Location
}

// Assistant orchestrates one inbound message: profile, mode, rules, delivery
// quote, upsell and, when configured, the reply composer.
type Assistant struct {
	profiles   port.ProfileStore
	cache      port.Cache[*domain.CustomerProfile]
	aggregator *ProfileAggregator
	rules      *RulesResolver
	quotes     *DeliveryQuoteEngine
	composer   port.ReplyComposer
	bulkhead   *resilience.Bulkhead
	cfg        AssistantConfig
	metrics    *observability.Metrics
	logger     *zap.Logger

	now func() time.Time
}

// NewAssistant creates the assistant service with all dependencies injected.
// composer may be nil.
func NewAssistant(
	profiles port.ProfileStore,
	cache port.Cache[*domain.CustomerProfile],
	aggregator *ProfileAggregator,
	rules *RulesResolver,
	quotes *DeliveryQuoteEngine,
	composer port.ReplyComposer,
	bulkhead *resilience.Bulkhead,
	cfg AssistantConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Assistant {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Assistant{
		profiles:   profiles,
		cache:      cache,
		aggregator: aggregator,
		rules:      rules,
		quotes:     quotes,
		composer:   composer,
		bulkhead:   bulkhead,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (a *Assistant) WithClock(now func() time.Time) *Assistant {
	a.now = now
	return a
}

// GetProfile fetches the stored profile (used by the dedicated /profile route).
func (a *Assistant) GetProfile(ctx context.Context, phone string) (*domain.CustomerProfile, error) {
	ctx, span := tracer.Start(ctx, "Assistant.GetProfile")
	defer span.End()

	p, err := a.loadProfile(ctx, phone)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: phone}
	}
	return p, nil
}

// HandleMessage runs the decision pipeline for one inbound message.
func (a *Assistant) HandleMessage(ctx context.Context, msg *domain.InboundMessage) (*domain.TurnResult, error) {
	// Bail out early if the caller already cancelled.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(msg.Phone) == "" {
		return nil, &domain.ErrValidation{Field: "phone", Message: "phone is required"}
	}

	ctx, span := tracer.Start(ctx, "Assistant.HandleMessage")
	defer span.End()

	start := time.Now()
	defer func() {
		a.metrics.RecordRequestDuration("message", time.Since(start))
	}()

	now := a.now().In(a.cfg.Location)
	historyText := msg.HistoryText(a.cfg.HistoryWindow)

	// --- Step 1: load what we know about the customer ---
	existing, err := a.loadProfile(ctx, msg.Phone)
	if err != nil {
		return nil, err
	}

	// --- Step 2: mode from the interaction stored before this message ---
	mode := SelectMode(existing, now)
	span.SetAttributes(attribute.String("turn.mode", string(mode)))

	// --- Step 3: rules + delivery quote concurrently ---
	var (
		rules string
		quote *domain.DeliveryQuote
	)
	address := a.quoteAddress(msg)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rules = a.rules.Resolve(gCtx, mode)
		return nil
	})
	if address != "" {
		g.Go(func() error {
			if err := a.bulkhead.Acquire(gCtx); err != nil {
				return &domain.ErrTimeout{Operation: "delivery quote"}
			}
			defer a.bulkhead.Release()
			quote = a.quotes.Quote(gCtx, address)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// --- Step 4: fold the message into the profile ---
	updated := a.aggregator.Update(msg.Phone, msg.Text, historyText, existing)
	updated.LastInteractionAt = now
	if updated.CreatedAt.IsZero() {
		updated.CreatedAt = now
	}

	// --- Step 5: upsell ---
	result := &domain.TurnResult{
		ID:          uuid.New().String(),
		Mode:        mode,
		Rules:       rules,
		Profile:     updated,
		Quote:       quote,
		ProcessedAt: now,
	}
	if s, ok := SuggestUpsell(historyText, msg.Text); ok {
		result.Upsell = &s
	}

	// --- Step 6: optional reply composition ---
	// Compõe antes de persistir: turno com erro não grava nada.
	if a.composer != nil {
		turn := &domain.TurnContext{
			Mode:    mode,
			Rules:   rules,
			Profile: updated,
			Quote:   quote,
			Text:    msg.Text,
			History: msg.History,
		}
		if result.Upsell != nil {
			turn.Upsell = *result.Upsell
		}

		composeStart := time.Now()
		answer, err := a.composer.Compose(ctx, turn)
		a.metrics.RecordRequestDuration("compose", time.Since(composeStart))
		if err != nil {
			a.logger.Error("reply composition failed",
				zap.String("anon_id", updated.AnonID),
				zap.Error(err),
			)
			a.metrics.IncrExternalError("composer")
			return nil, fmt.Errorf("compose reply: %w", err)
		}
		result.Answer = answer
	}

	// --- Step 7: persist ---
	if err := a.profiles.SaveProfile(ctx, updated); err != nil {
		a.logger.Error("failed to save profile",
			zap.String("anon_id", updated.AnonID),
			zap.Error(err),
		)
		a.metrics.IncrExternalError("profile-store")
		return nil, fmt.Errorf("profile save: %w", err)
	}
	a.cache.Set(profileCacheKey(msg.Phone), updated)
	a.metrics.IncrSegment(string(updated.Segment))

	a.metrics.IncrMessage(string(mode))
	a.logger.Info("message handled",
		zap.String("turn_id", result.ID),
		zap.String("anon_id", updated.AnonID),
		zap.String("mode", string(mode)),
		zap.String("segment", string(updated.Segment)),
		zap.Bool("quoted", quote != nil),
		zap.Bool("upsell", result.Upsell != nil),
	)
	return result, nil
}

// quoteAddress returns the address to quote, or "" when no quoting intent.
func (a *Assistant) quoteAddress(msg *domain.InboundMessage) string {
	if strings.TrimSpace(msg.Address) != "" {
		return msg.Address
	}
	if DetectIntent(msg.Text) == IntentDeliveryQuote {
		return msg.Text
	}
	return ""
}

// loadProfile returns nil, nil for a customer never seen before.
func (a *Assistant) loadProfile(ctx context.Context, phone string) (*domain.CustomerProfile, error) {
	cacheKey := profileCacheKey(phone)
	if p, ok := a.cache.Get(cacheKey); ok {
		a.metrics.IncrCacheHit("profile")
		return p, nil
	}
	a.metrics.IncrCacheMiss("profile")

	p, err := a.profiles.GetProfile(ctx, phone)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, nil
		}
		a.logger.Error("failed to fetch profile", zap.Error(err))
		a.metrics.IncrExternalError("profile-store")
		return nil, fmt.Errorf("profile fetch: %w", err)
	}
	a.cache.Set(cacheKey, p)
	return p, nil
}

func profileCacheKey(phone string) string {
	return "profile:" + phone
}
