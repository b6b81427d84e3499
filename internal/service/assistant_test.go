package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/cache"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/port"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/service"

	"go.uber.org/zap"
)

// wednesday 19h in São Paulo
var testNow = time.Date(2024, 5, 8, 22, 0, 0, 0, time.UTC)

type assistantFixture struct {
	store    *mockProfileStore
	rules    *mockRuleStore
	source   *mockRuleSource
	lookup   *mockLookup
	metrics  *observability.Metrics
	cache    *cache.InMemory[*domain.CustomerProfile]
	composer *mockComposer
}

func newFixture(t *testing.T) *assistantFixture {
	t.Helper()
	f := &assistantFixture{
		store:   newMockProfileStore(),
		rules:   newMockRuleStore(),
		source:  newMockRuleSource(),
		lookup:  &mockLookup{result: &domain.DistanceResult{KM: 2.8, ETAMinutes: 25, FormattedAddress: "Rua Augusta, 1500"}},
		metrics: observability.NewMetrics(),
		cache:   cache.New[*domain.CustomerProfile](time.Minute),
	}
	t.Cleanup(f.cache.Close)
	for _, m := range domain.AllModes() {
		f.source.put(m.RuleFile(), "regras "+string(m), t0)
	}
	return f
}

func (f *assistantFixture) build() *service.Assistant {
	logger := zap.NewNop()
	var composer port.ReplyComposer
	if f.composer != nil {
		composer = f.composer
	}
	brt := time.FixedZone("BRT", -3*60*60)
	return service.NewAssistant(
		f.store,
		f.cache,
		service.NewProfileAggregator("salt"),
		service.NewRulesResolver(f.rules, f.source, f.metrics, logger),
		service.NewDeliveryQuoteEngine(f.lookup, service.DeliveryConfig{HasKey: true}, f.metrics, logger),
		composer,
		resilience.NewBulkhead(4),
		service.AssistantConfig{HistoryWindow: 3, Location: brt},
		f.metrics,
		logger,
	).WithClock(func() time.Time { return testNow })
}

// --- Tests ---

func TestHandleMessage_NewCustomer(t *testing.T) {
	f := newFixture(t)
	a := f.build()

	res, err := a.HandleMessage(context.Background(), &domain.InboundMessage{
		Phone: testPhone,
		Text:  "quero uma calabresa grande",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if res.Mode != domain.ModeBase {
		t.Errorf("expected BASE for a new customer, got %s", res.Mode)
	}
	if res.Rules != "regras BASE" {
		t.Errorf("unexpected rules %q", res.Rules)
	}
	if res.Quote != nil {
		t.Errorf("expected no quote without delivery intent, got %+v", res.Quote)
	}
	if res.Upsell == nil || *res.Upsell != service.UpsellStuffedCrust {
		t.Errorf("expected stuffed-crust upsell, got %v", res.Upsell)
	}
	if res.ID == "" {
		t.Error("expected a turn id")
	}

	saved := f.store.profiles[testPhone]
	if saved == nil {
		t.Fatal("expected profile to be saved")
	}
	if !saved.LastInteractionAt.Equal(testNow) || !saved.CreatedAt.Equal(testNow) {
		t.Errorf("expected timestamps set to now, got %v / %v", saved.LastInteractionAt, saved.CreatedAt)
	}
	if !saved.Tags.Has(domain.TagBigSize) || saved.Scores.Ticket != 60 {
		t.Errorf("unexpected saved profile %+v", saved)
	}
}

func TestHandleMessage_ReturningCustomerIsVIP(t *testing.T) {
	f := newFixture(t)
	existing := domain.NewCustomerProfile(testPhone)
	existing.AnonID = "abcdef0123"
	existing.LastInteractionAt = testNow.Add(-2 * time.Hour)
	existing.CreatedAt = testNow.Add(-30 * 24 * time.Hour)
	f.store.profiles[testPhone] = existing
	f.rules.values["RULES_VIP"] = "trate como VIP"

	res, err := f.build().HandleMessage(context.Background(), &domain.InboundMessage{Phone: testPhone, Text: "oi de novo"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Mode != domain.ModeVIP || res.Rules != "trate como VIP" {
		t.Errorf("expected VIP override, got %s %q", res.Mode, res.Rules)
	}
	if res.Profile.AnonID != "abcdef0123" {
		t.Errorf("expected anon id to be kept, got %q", res.Profile.AnonID)
	}
	if !res.Profile.CreatedAt.Equal(existing.CreatedAt) {
		t.Errorf("expected created_at to be kept, got %v", res.Profile.CreatedAt)
	}
}

func TestHandleMessage_QuotesOnDeliveryIntent(t *testing.T) {
	f := newFixture(t)

	res, err := f.build().HandleMessage(context.Background(), &domain.InboundMessage{
		Phone: testPhone,
		Text:  "vocês entregam na Rua Augusta 1500?",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Quote == nil || !res.Quote.Serviceable() || *res.Quote.Fee != 8 {
		t.Errorf("expected serviceable quote with fee 8, got %+v", res.Quote)
	}
	if f.lookup.calls != 1 {
		t.Errorf("expected one lookup, got %d", f.lookup.calls)
	}
}

func TestHandleMessage_ExplicitAddress(t *testing.T) {
	f := newFixture(t)

	res, err := f.build().HandleMessage(context.Background(), &domain.InboundMessage{
		Phone:   testPhone,
		Text:    "fecha o pedido",
		Address: "Rua Augusta, 1500",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Quote == nil || !res.Quote.OK {
		t.Errorf("expected quote for explicit address, got %+v", res.Quote)
	}
}

func TestHandleMessage_HistoryWindow(t *testing.T) {
	f := newFixture(t)

	res, err := f.build().HandleMessage(context.Background(), &domain.InboundMessage{
		Phone: testPhone,
		Text:  "ok",
		History: []domain.HistoryMessage{
			{Role: "user", Text: "tem desconto?"}, // outside a window of 3
			{Role: "assistant", Text: "temos sim"},
			{Role: "user", Text: "é pra família"},
			{Role: "assistant", Text: "beleza"},
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !res.Profile.Tags.Has(domain.TagFamily) {
		t.Errorf("expected familia tag from history, got %v", res.Profile.Tags)
	}
	if res.Profile.Tags.Has(domain.TagPriceSensitive) {
		t.Errorf("expected messages outside the window to be ignored, got %v", res.Profile.Tags)
	}
}

func TestHandleMessage_CacheAvoidsSecondFetch(t *testing.T) {
	f := newFixture(t)
	a := f.build()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := a.HandleMessage(ctx, &domain.InboundMessage{Phone: testPhone, Text: "oi"}); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}
	if f.store.gets != 1 {
		t.Errorf("expected one store read, got %d", f.store.gets)
	}
	if f.store.saves != 2 {
		t.Errorf("expected two saves, got %d", f.store.saves)
	}
}

func TestHandleMessage_Composer(t *testing.T) {
	f := newFixture(t)
	f.composer = &mockComposer{answer: "Boa noite! Quer a calabresa com borda?"}

	res, err := f.build().HandleMessage(context.Background(), &domain.InboundMessage{Phone: testPhone, Text: "uma calabresa"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Answer != f.composer.answer {
		t.Errorf("unexpected answer %q", res.Answer)
	}
	if f.composer.last.Upsell != service.UpsellStuffedCrust || f.composer.last.Rules != "regras BASE" {
		t.Errorf("unexpected turn context %+v", f.composer.last)
	}
}

func TestHandleMessage_Errors(t *testing.T) {
	t.Run("missing phone", func(t *testing.T) {
		_, err := newFixture(t).build().HandleMessage(context.Background(), &domain.InboundMessage{Text: "oi"})
		var v *domain.ErrValidation
		if !errors.As(err, &v) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("store read failure", func(t *testing.T) {
		f := newFixture(t)
		f.store.getErr = &domain.ErrExternalService{Service: "supabase/customer_profiles", Err: errors.New("503")}
		_, err := f.build().HandleMessage(context.Background(), &domain.InboundMessage{Phone: testPhone, Text: "oi"})
		var ext *domain.ErrExternalService
		if !errors.As(err, &ext) {
			t.Errorf("expected ErrExternalService, got %v", err)
		}
	})

	t.Run("store save failure", func(t *testing.T) {
		f := newFixture(t)
		f.store.saveErr = &domain.ErrExternalService{Service: "supabase/customer_profiles", Err: errors.New("503")}
		_, err := f.build().HandleMessage(context.Background(), &domain.InboundMessage{Phone: testPhone, Text: "oi"})
		if err == nil {
			t.Error("expected error")
		}
		if _, ok := f.cache.Get("profile:" + testPhone); ok {
			t.Error("expected cache untouched when save fails")
		}
	})

	t.Run("composer failure", func(t *testing.T) {
		f := newFixture(t)
		f.composer = &mockComposer{err: &domain.ErrCircuitOpen{Service: "openai"}}
		_, err := f.build().HandleMessage(context.Background(), &domain.InboundMessage{Phone: testPhone, Text: "oi"})
		var open *domain.ErrCircuitOpen
		if !errors.As(err, &open) {
			t.Errorf("expected ErrCircuitOpen, got %v", err)
		}
		if f.store.saves != 0 {
			t.Errorf("expected no save when composition fails, got %d", f.store.saves)
		}
		if _, ok := f.cache.Get("profile:" + testPhone); ok {
			t.Error("expected cache untouched when composition fails")
		}
	})

	t.Run("composer failure then retry applies deltas once", func(t *testing.T) {
		f := newFixture(t)
		f.composer = &mockComposer{err: &domain.ErrCircuitOpen{Service: "openai"}}
		a := f.build()
		msg := &domain.InboundMessage{Phone: testPhone, Text: "quero borda e refri"}

		if _, err := a.HandleMessage(context.Background(), msg); err == nil {
			t.Fatal("expected error on first attempt")
		}
		f.composer.err = nil
		f.composer.answer = "fechado!"
		res, err := a.HandleMessage(context.Background(), msg)
		if err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if res.Profile.Scores.Ticket != 60 {
			t.Errorf("expected ticket 60 after one applied turn, got %d", res.Profile.Scores.Ticket)
		}
		if f.store.profiles[testPhone].Scores.Ticket != 60 {
			t.Errorf("expected stored ticket 60, got %d", f.store.profiles[testPhone].Scores.Ticket)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newFixture(t).build().HandleMessage(ctx, &domain.InboundMessage{Phone: testPhone, Text: "oi"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestGetProfile(t *testing.T) {
	f := newFixture(t)
	a := f.build()

	_, err := a.GetProfile(context.Background(), testPhone)
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := a.HandleMessage(context.Background(), &domain.InboundMessage{Phone: testPhone, Text: "oi"}); err != nil {
		t.Fatal(err)
	}
	p, err := a.GetProfile(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("expected profile, got %v", err)
	}
	if p.AnonID != service.AnonID(testPhone, "salt") {
		t.Errorf("unexpected anon id %q", p.AnonID)
	}
}
