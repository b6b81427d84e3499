package service_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/service"

	"go.uber.org/zap"
)

func newEngine(lookup *mockLookup, hasKey bool) *service.DeliveryQuoteEngine {
	return service.NewDeliveryQuoteEngine(lookup, service.DeliveryConfig{HasKey: hasKey},
		observability.NewMetrics(), zap.NewNop())
}

func TestQuote_Tiers(t *testing.T) {
	tests := []struct {
		km          float64
		wantFee     *float64
		serviceable bool
		soft        bool
	}{
		{2.0, ptr(5.0), true, true},
		{2.5, ptr(8.0), true, true},
		{6.0, ptr(12.0), true, true},
		{10.0, ptr(15.0), true, true},
		{10.1, nil, false, false},
		{11.9, nil, false, false},
	}
	for _, tt := range tests {
		lookup := &mockLookup{result: &domain.DistanceResult{KM: tt.km, ETAMinutes: 20, FormattedAddress: "Rua X, 10"}}
		q := newEngine(lookup, true).Quote(context.Background(), "Rua das Flores, 123")

		if !q.OK {
			t.Fatalf("km=%v: expected ok quote, got %+v", tt.km, q)
		}
		if q.Serviceable() != tt.serviceable {
			t.Errorf("km=%v: expected serviceable=%v", tt.km, tt.serviceable)
		}
		switch {
		case tt.wantFee == nil && q.Fee != nil:
			t.Errorf("km=%v: expected null fee, got %v", tt.km, *q.Fee)
		case tt.wantFee != nil && (q.Fee == nil || *q.Fee != *tt.wantFee):
			t.Errorf("km=%v: expected fee %v, got %v", tt.km, *tt.wantFee, q.Fee)
		}
		if *q.Soft != tt.soft {
			t.Errorf("km=%v: expected soft=%v", tt.km, tt.soft)
		}
		if q.ServiceLimitKMHint != 12 {
			t.Errorf("expected hint 12, got %v", q.ServiceLimitKMHint)
		}
	}
}

func TestQuote_Failures(t *testing.T) {
	tests := []struct {
		name    string
		hasKey  bool
		address string
		lookup  *mockLookup
		want    domain.QuoteReason
	}{
		{"no key", false, "Rua das Flores, 123", &mockLookup{}, domain.ReasonNoKey},
		{"implausible address", true, "abc", &mockLookup{}, domain.ReasonIncompleteAddress},
		{"no number", true, "Rua das Flores", &mockLookup{}, domain.ReasonIncompleteAddress},
		{"lookup error", true, "Rua das Flores, 123", &mockLookup{err: errors.New("geocode ZERO_RESULTS")}, domain.ReasonQuoteFailed},
		{"nan km", true, "Rua das Flores, 123", &mockLookup{result: &domain.DistanceResult{KM: math.NaN()}}, domain.ReasonNoKM},
		{"infinite km", true, "Rua das Flores, 123", &mockLookup{result: &domain.DistanceResult{KM: math.Inf(1)}}, domain.ReasonNoKM},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newEngine(tt.lookup, tt.hasKey).Quote(context.Background(), tt.address)
			if q.OK || q.Reason != tt.want {
				t.Errorf("expected {ok:false reason:%s}, got %+v", tt.want, q)
			}
			if q.Fee != nil || q.KM != nil {
				t.Errorf("expected no measurements on failure, got %+v", q)
			}
		})
	}
}

func TestQuote_NoLookupBeforePlausibility(t *testing.T) {
	lookup := &mockLookup{}
	newEngine(lookup, true).Quote(context.Background(), "abc")
	if lookup.calls != 0 {
		t.Errorf("expected no lookup for implausible address, got %d calls", lookup.calls)
	}
}

func TestQuote_FormattedFallsBackToInput(t *testing.T) {
	lookup := &mockLookup{result: &domain.DistanceResult{KM: 1.2, ETAMinutes: 9}}
	q := newEngine(lookup, true).Quote(context.Background(), "Av. Paulista 1000")
	if q.FormattedAddress != "Av. Paulista 1000" {
		t.Errorf("expected original address, got %q", q.FormattedAddress)
	}
	if *q.ETAMin != 9 {
		t.Errorf("expected eta 9, got %d", *q.ETAMin)
	}
}

func TestQuote_SoftIndependentOfTiers(t *testing.T) {
	lookup := &mockLookup{result: &domain.DistanceResult{KM: 8}}
	engine := service.NewDeliveryQuoteEngine(lookup, service.DeliveryConfig{HasKey: true, SoftKM: 5, MaxKM: 20},
		observability.NewMetrics(), zap.NewNop())

	q := engine.Quote(context.Background(), "Rua A, 45")
	if !q.Serviceable() || *q.Soft {
		t.Errorf("expected serviceable but not soft at 8km with soft=5, got %+v", q)
	}
	if q.ServiceLimitKMHint != 20 {
		t.Errorf("expected hint 20, got %v", q.ServiceLimitKMHint)
	}
}

func TestPlausibleAddress(t *testing.T) {
	tests := map[string]bool{
		"abc":                 false,
		"  12  ":              false,
		"Rua A 1":             true,
		"Rua das Flores, 10B": true,
		"sem numero aqui":     false,
		// digit runs longer than 5 still match on a partial run
		"11987654321": true,
		"01310-100":   true,
	}
	for in, want := range tests {
		if got := service.PlausibleAddress(in); got != want {
			t.Errorf("PlausibleAddress(%q) = %v, want %v", in, got, want)
		}
	}
}

func ptr[T any](v T) *T { return &v }
