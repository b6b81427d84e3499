package service_test

import (
	"testing"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/service"
)

func TestSuggestUpsell(t *testing.T) {
	tests := []struct {
		name    string
		history string
		text    string
		want    string
		wantOK  bool
	}{
		{"gigante", "", "quero uma GIGANTE", service.UpsellLargeDrink, true},
		{"sixteen in history", "a de 16 pedaços", "pode ser", service.UpsellLargeDrink, true},
		{"calabresa", "", "uma de calabresa", service.UpsellStuffedCrust, true},
		{"size beats flavor", "calabresa", "gigante", service.UpsellLargeDrink, true},
		{"calabresa 16", "calabresa de 16", "", service.UpsellLargeDrink, true},
		{"frango com catupiry", "", "frango com catupiry", service.UpsellSideDish, true},
		{"split across history", "frango", "com catupiry", service.UpsellSideDish, true},
		{"calabresa beats frango", "frango com catupiry", "e uma calabresa", service.UpsellStuffedCrust, true},
		{"frango alone", "", "frango", "", false},
		{"nothing", "", "boa noite", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := service.SuggestUpsell(tt.history, tt.text)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("SuggestUpsell(%q, %q) = (%q, %v), want (%q, %v)", tt.history, tt.text, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
