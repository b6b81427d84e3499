package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// RulesResolver - override persistido > arquivo padrão
// ============================================================
//
// Resolução em duas camadas:
//  1. override no store chave-valor (RULES_<MODE>); qualquer erro de leitura
//     conta como ausente
//  2. arquivo padrão do modo, lido através de um cache por data de modificação
//
// O check-and-reload do cache roda sob mutex: leituras concorrentes do mesmo
// arquivo carregam uma vez só.

var errNoRuleStore = errors.New("no rule override store configured")

type ruleEntry struct {
	text    string
	modTime time.Time
}

// RulesResolver resolves the rule text for a mode.
type RulesResolver struct {
	store   port.RuleOverrideStore
	source  port.RuleSource
	metrics *observability.Metrics
	logger  *zap.Logger

	mu      sync.Mutex
	entries map[string]ruleEntry
}

// NewRulesResolver creates the resolver. store may be nil, in which case
// only the bundled defaults are served.
func NewRulesResolver(store port.RuleOverrideStore, source port.RuleSource, metrics *observability.Metrics, logger *zap.Logger) *RulesResolver {
	return &RulesResolver{
		store:   store,
		source:  source,
		metrics: metrics,
		logger:  logger,
		entries: make(map[string]ruleEntry),
	}
}

// Resolve returns the rule text for mode. It never fails; when nothing can
// be read the result is empty.
func (r *RulesResolver) Resolve(ctx context.Context, mode domain.Mode) string {
	mode = mode.Normalize()
	ctx, span := tracer.Start(ctx, "RulesResolver.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("rules.mode", string(mode)))

	if text, ok := r.override(ctx, mode); ok {
		r.metrics.IncrRuleResolution("override")
		return text
	}

	text, ok := r.fromFile(mode.RuleFile())
	if !ok && mode != domain.ModeBase {
		r.logger.Warn("rules: default resource unavailable, falling back to BASE",
			zap.String("mode", string(mode)),
		)
		text, _ = r.fromFile(domain.ModeBase.RuleFile())
	}
	return text
}

// Override returns the persisted override for mode, if any.
func (r *RulesResolver) Override(ctx context.Context, mode domain.Mode) (string, bool) {
	return r.override(ctx, mode.Normalize())
}

// SaveOverride upserts the override for mode. It supersedes the bundled
// default until deleted.
func (r *RulesResolver) SaveOverride(ctx context.Context, mode domain.Mode, text string) error {
	if r.store == nil {
		return &domain.ErrExternalService{Service: "rules-store", Err: errNoRuleStore}
	}
	if strings.TrimSpace(text) == "" {
		return &domain.ErrValidation{Field: "text", Message: "rule text must not be empty"}
	}
	key := mode.Normalize().StorageKey()
	if err := r.store.UpsertRuleOverride(ctx, key, text); err != nil {
		r.metrics.IncrExternalError("rules-store")
		return err
	}
	r.logger.Info("rules: override saved", zap.String("key", key), zap.Int("length", len(text)))
	return nil
}

// DeleteOverride removes the override for mode, restoring the default.
func (r *RulesResolver) DeleteOverride(ctx context.Context, mode domain.Mode) error {
	if r.store == nil {
		return &domain.ErrExternalService{Service: "rules-store", Err: errNoRuleStore}
	}
	key := mode.Normalize().StorageKey()
	if err := r.store.DeleteRuleOverride(ctx, key); err != nil {
		r.metrics.IncrExternalError("rules-store")
		return err
	}
	r.logger.Info("rules: override deleted", zap.String("key", key))
	return nil
}

func (r *RulesResolver) override(ctx context.Context, mode domain.Mode) (string, bool) {
	if r.store == nil {
		return "", false
	}
	text, found, err := r.store.GetRuleOverride(ctx, mode.StorageKey())
	if err != nil {
		r.logger.Warn("rules: override lookup failed, using default",
			zap.String("key", mode.StorageKey()),
			zap.Error(err),
		)
		r.metrics.IncrExternalError("rules-store")
		return "", false
	}
	if !found || text == "" {
		return "", false
	}
	return text, true
}

// fromFile serves a bundled resource through the modification-time cache.
func (r *RulesResolver) fromFile(name string) (string, bool) {
	if r.source == nil {
		return "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cached, hasCached := r.entries[name]

	modTime, err := r.source.ModTime(name)
	if err != nil {
		if hasCached {
			r.logger.Warn("rules: stat failed, serving cached text",
				zap.String("file", name),
				zap.Error(err),
			)
			r.metrics.IncrRuleResolution("cache")
			return cached.text, true
		}
		r.logger.Error("rules: default resource missing", zap.String("file", name), zap.Error(err))
		return "", false
	}

	if hasCached && cached.modTime.Equal(modTime) {
		r.metrics.IncrRuleResolution("cache")
		return cached.text, true
	}

	text, err := r.source.Read(name)
	if err != nil {
		r.logger.Error("rules: failed to read default resource", zap.String("file", name), zap.Error(err))
		if hasCached {
			return cached.text, true
		}
		return "", false
	}

	r.entries[name] = ruleEntry{text: text, modTime: modTime}
	r.metrics.IncrRuleResolution("file")
	r.logger.Debug("rules: default resource loaded",
		zap.String("file", name),
		zap.Time("mod_time", modTime),
	)
	return text, true
}
