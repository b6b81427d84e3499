package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// 3. Entrega e adicionais
// ============================================================

type quoteRequest struct {
	Address string `json:"address"`
}

// deliveryQuoteHandler sempre responde 200: falhas de cotação são
// informadas em ok=false + reason, não como erro HTTP.
func deliveryQuoteHandler(quotes *service.DeliveryQuoteEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if quotes == nil {
			writeError(w, http.StatusServiceUnavailable, "delivery quotes not configured")
			return
		}
		ctx, span := tracer.Start(r.Context(), "POST /v1/delivery/quote")
		defer span.End()

		var req quoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		q := quotes.Quote(ctx, req.Address)
		span.SetAttributes(attribute.Bool("quote.ok", q.OK))
		if !q.OK {
			logger.Debug("delivery quote refused", zap.String("reason", string(q.Reason)))
		}
		writeJSON(w, http.StatusOK, q)
	}
}

type upsellRequest struct {
	History []string `json:"history"`
	Text    string   `json:"text"`
}

type upsellResponse struct {
	Suggestion *string `json:"suggestion"`
}

func upsellHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req upsellRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp := upsellResponse{}
		if s, ok := service.SuggestUpsell(strings.Join(req.History, "\n"), req.Text); ok {
			resp.Suggestion = &s
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
