package service_test

import (
	"testing"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/service"
)

func TestDetectIntent(t *testing.T) {
	tests := map[string]service.Intent{
		"vocês entregam na Rua Augusta 1500?": service.IntentDeliveryQuote,
		"quanto é a TAXA de entrega":          service.IntentDeliveryQuote,
		"meu CEP é 01310-100":                 service.IntentDeliveryQuote,
		"quero uma calabresa":                 service.IntentGeneral,
		"":                                    service.IntentGeneral,
	}
	for text, want := range tests {
		if got := service.DetectIntent(text); got != want {
			t.Errorf("DetectIntent(%q) = %s, want %s", text, got, want)
		}
	}
}
