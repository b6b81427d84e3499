package service

import "strings"

// Intent is what the customer is trying to do in a message.
type Intent string

const (
	IntentDeliveryQuote Intent = "delivery_quote"
	IntentGeneral       Intent = "general"
)

// deliveryKeywords indicam que o cliente quer saber se entregamos no
// endereço dele ou quanto fica a entrega.
var deliveryKeywords = []string{
	"entrega", "entregam", "entregar", "delivery",
	"frete", "taxa", "endereço", "endereco",
	"rua ", "avenida", "av.", "travessa", "alameda",
	"bairro", "cep", "meu ap", "condomínio", "condominio",
}

// DetectIntent classifies a message with simple keyword matching.
func DetectIntent(text string) Intent {
	lower := strings.ToLower(text)
	for _, kw := range deliveryKeywords {
		if strings.Contains(lower, kw) {
			return IntentDeliveryQuote
		}
	}
	return IntentGeneral
}
