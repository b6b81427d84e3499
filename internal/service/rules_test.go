package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/service"

	"go.uber.org/zap"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newResolver(store *mockRuleStore, source *mockRuleSource) *service.RulesResolver {
	if store == nil {
		return service.NewRulesResolver(nil, source, observability.NewMetrics(), zap.NewNop())
	}
	return service.NewRulesResolver(store, source, observability.NewMetrics(), zap.NewNop())
}

func TestResolve_OverrideWins(t *testing.T) {
	store := newMockRuleStore()
	store.values["RULES_VIP"] = "regras vip do banco"
	source := newMockRuleSource()
	source.put("vip.md", "regras vip do arquivo", t0)

	r := newResolver(store, source)
	if got := r.Resolve(context.Background(), domain.ModeVIP); got != "regras vip do banco" {
		t.Errorf("expected override, got %q", got)
	}

	// a newer file does not beat the override
	source.put("vip.md", "regras vip novas", t0.Add(time.Hour))
	if got := r.Resolve(context.Background(), domain.ModeVIP); got != "regras vip do banco" {
		t.Errorf("expected override after file change, got %q", got)
	}
	if source.reads != 0 {
		t.Errorf("expected no file reads while an override exists, got %d", source.reads)
	}
}

func TestResolve_FileCacheInvalidatesOnModTime(t *testing.T) {
	source := newMockRuleSource()
	source.put("base.md", "v1", t0)
	r := newResolver(newMockRuleStore(), source)
	ctx := context.Background()

	if got := r.Resolve(ctx, domain.ModeBase); got != "v1" {
		t.Fatalf("expected v1, got %q", got)
	}
	if got := r.Resolve(ctx, domain.ModeBase); got != "v1" {
		t.Fatalf("expected cached v1, got %q", got)
	}
	if source.reads != 1 {
		t.Errorf("expected a single read while unchanged, got %d", source.reads)
	}

	source.put("base.md", "v2", t0.Add(time.Minute))
	if got := r.Resolve(ctx, domain.ModeBase); got != "v2" {
		t.Errorf("expected reload to v2, got %q", got)
	}
	if source.reads != 2 {
		t.Errorf("expected a second read after mtime change, got %d", source.reads)
	}
}

func TestResolve_StoreErrorFallsBackToFile(t *testing.T) {
	store := newMockRuleStore()
	store.values["RULES_EVENT"] = "override"
	store.getErr = errors.New("connection refused")
	source := newMockRuleSource()
	source.put("event.md", "regras de evento", t0)

	if got := newResolver(store, source).Resolve(context.Background(), domain.ModeEvent); got != "regras de evento" {
		t.Errorf("expected file text on store error, got %q", got)
	}
}

func TestResolve_EmptyOverrideIsAbsent(t *testing.T) {
	store := newMockRuleStore()
	store.values["RULES_BASE"] = ""
	source := newMockRuleSource()
	source.put("base.md", "padrão", t0)

	if got := newResolver(store, source).Resolve(context.Background(), domain.ModeBase); got != "padrão" {
		t.Errorf("expected default text, got %q", got)
	}
}

func TestResolve_MissingModeFileFallsBackToBase(t *testing.T) {
	source := newMockRuleSource()
	source.put("base.md", "base", t0)

	if got := newResolver(nil, source).Resolve(context.Background(), domain.ModePromo); got != "base" {
		t.Errorf("expected BASE fallback, got %q", got)
	}
}

func TestResolve_StatFailureServesCached(t *testing.T) {
	source := newMockRuleSource()
	source.put("base.md", "cached", t0)
	r := newResolver(nil, source)
	ctx := context.Background()

	r.Resolve(ctx, domain.ModeBase)
	source.statErr = errors.New("permission denied")
	if got := r.Resolve(ctx, domain.ModeBase); got != "cached" {
		t.Errorf("expected cached text when stat fails, got %q", got)
	}
}

func TestResolve_NothingAvailable(t *testing.T) {
	if got := newResolver(nil, newMockRuleSource()).Resolve(context.Background(), domain.ModeVIP); got != "" {
		t.Errorf("expected empty text, got %q", got)
	}
}

func TestResolve_ConcurrentReadsLoadOnce(t *testing.T) {
	source := newMockRuleSource()
	source.put("event.md", "sexta é dia de pizza", t0)
	r := newResolver(nil, source)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := r.Resolve(context.Background(), domain.ModeEvent); got != "sexta é dia de pizza" {
				t.Errorf("unexpected text %q", got)
			}
		}()
	}
	wg.Wait()

	if source.reads != 1 {
		t.Errorf("expected exactly one load under concurrency, got %d", source.reads)
	}
}

func TestOverrideLifecycle(t *testing.T) {
	store := newMockRuleStore()
	source := newMockRuleSource()
	source.put("promo.md", "promo padrão", t0)
	r := newResolver(store, source)
	ctx := context.Background()

	if err := r.SaveOverride(ctx, domain.ModePromo, "  "); err == nil {
		t.Error("expected validation error for blank text")
	}
	if err := r.SaveOverride(ctx, domain.ModePromo, "leve 2 pague 1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if store.values["RULES_PROMO"] != "leve 2 pague 1" {
		t.Errorf("expected override under RULES_PROMO, got %v", store.values)
	}
	if got := r.Resolve(ctx, domain.ModePromo); got != "leve 2 pague 1" {
		t.Errorf("expected override, got %q", got)
	}
	if err := r.DeleteOverride(ctx, domain.ModePromo); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := r.Resolve(ctx, domain.ModePromo); got != "promo padrão" {
		t.Errorf("expected default after delete, got %q", got)
	}
}

func TestSaveOverride_NoStore(t *testing.T) {
	err := newResolver(nil, newMockRuleSource()).SaveOverride(context.Background(), domain.ModeBase, "x")
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Errorf("expected ErrExternalService, got %v", err)
	}
}
