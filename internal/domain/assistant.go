package domain

import (
	"strings"
	"time"
)

// ============================================================
// Mensagem recebida - o que a camada de transporte entrega
// ============================================================

// HistoryMessage é uma mensagem anterior da conversa.
type HistoryMessage struct {
	Role string `json:"role"` // user, assistant
	Text string `json:"text"`
}

// InboundMessage é o body do POST /v1/messages.
type InboundMessage struct {
	Phone   string           `json:"phone"`
	Text    string           `json:"text"`
	History []HistoryMessage `json:"history,omitempty"`
	// Address força a cotação de entrega mesmo sem intenção detectada no texto.
	Address string `json:"address,omitempty"`
}

// HistoryText junta as últimas window mensagens do histórico, uma por linha.
// window <= 0 usa o histórico inteiro.
func (m *InboundMessage) HistoryText(window int) string {
	h := m.History
	if window > 0 && len(h) > window {
		h = h[len(h)-window:]
	}
	parts := make([]string, 0, len(h))
	for _, msg := range h {
		if msg.Text != "" {
			parts = append(parts, msg.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ============================================================
// Contexto do turno - entregue ao compositor de resposta
// ============================================================

// TurnContext reúne tudo o que o compositor precisa para responder.
type TurnContext struct {
	Mode    Mode
	Rules   string
	Profile *CustomerProfile
	Quote   *DeliveryQuote
	Upsell  string
	Text    string
	History []HistoryMessage
}

// TurnResult é a resposta do POST /v1/messages.
type TurnResult struct {
	ID          string           `json:"id"`
	Mode        Mode             `json:"mode"`
	Rules       string           `json:"rules"`
	Profile     *CustomerProfile `json:"profile"`
	Quote       *DeliveryQuote   `json:"quote,omitempty"`
	Upsell      *string          `json:"upsell,omitempty"`
	Answer      string           `json:"answer,omitempty"`
	ProcessedAt time.Time        `json:"processedAt"`
}
