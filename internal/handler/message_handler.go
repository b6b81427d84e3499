package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// 1. Mensagens - POST /v1/messages
// ============================================================

func messageHandler(svc *service.Assistant, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			writeError(w, http.StatusServiceUnavailable, "assistant not configured")
			return
		}
		ctx, span := tracer.Start(r.Context(), "POST /v1/messages")
		defer span.End()

		var req domain.InboundMessage
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Phone = strings.TrimSpace(req.Phone)

		result, err := svc.HandleMessage(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.String("turn.id", result.ID),
			attribute.String("turn.mode", string(result.Mode)),
		)
		writeJSON(w, http.StatusOK, result)
	}
}

// ============================================================
// 2. Cliente - GET /v1/customers/{phone}/profile
// ============================================================

func getProfileHandler(svc *service.Assistant, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			writeError(w, http.StatusServiceUnavailable, "assistant not configured")
			return
		}
		ctx, span := tracer.Start(r.Context(), "GET /v1/customers/{phone}/profile")
		defer span.End()

		phone := chi.URLParam(r, "phone")
		profile, err := svc.GetProfile(ctx, phone)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}
