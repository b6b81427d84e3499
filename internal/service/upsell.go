package service

import "strings"

// Sugestões de upsell, na ordem de prioridade.
const (
	UpsellLargeDrink   = "Que tal levar um refrigerante de 2 litros pra acompanhar a pizza gigante?"
	UpsellStuffedCrust = "Quer aproveitar e colocar borda recheada na sua calabresa?"
	UpsellSideDish     = "Pra acompanhar a de frango com catupiry, que tal uma porção de batata frita?"
)

// SuggestUpsell inspects history and the new text (history first) and
// returns at most one suggestion. ok is false when no rule matches.
func SuggestUpsell(historyText, userText string) (suggestion string, ok bool) {
	text := strings.ToLower(historyText + " " + userText)

	switch {
	case strings.Contains(text, "16") || strings.Contains(text, "gigante"):
		return UpsellLargeDrink, true
	case strings.Contains(text, "calabresa"):
		return UpsellStuffedCrust, true
	case strings.Contains(text, "frango") && strings.Contains(text, "catupiry"):
		return UpsellSideDish, true
	}
	return "", false
}
