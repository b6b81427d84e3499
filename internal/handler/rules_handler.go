package handler

import (
	"encoding/json"
	"net/http"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// 4. Regras - GET/PUT/DELETE /v1/rules/{mode}
// ============================================================

type rulesResponse struct {
	Mode       domain.Mode `json:"mode"`
	Key        string      `json:"key"`
	Rules      string      `json:"rules"`
	Overridden bool        `json:"overridden"`
}

type rulesRequest struct {
	Text string `json:"text"`
}

// modeParam parses {mode}. Modes are a closed set: unknown names are a 400.
func modeParam(w http.ResponseWriter, r *http.Request) (domain.Mode, bool) {
	raw := chi.URLParam(r, "mode")
	mode, ok := domain.ParseMode(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown mode: "+raw)
		return "", false
	}
	return mode, true
}

func getRulesHandler(rules *service.RulesResolver, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rules == nil {
			writeError(w, http.StatusServiceUnavailable, "rules not configured")
			return
		}
		mode, ok := modeParam(w, r)
		if !ok {
			return
		}
		ctx, span := tracer.Start(r.Context(), "GET /v1/rules/{mode}")
		defer span.End()

		_, overridden := rules.Override(ctx, mode)
		writeJSON(w, http.StatusOK, rulesResponse{
			Mode:       mode,
			Key:        mode.StorageKey(),
			Rules:      rules.Resolve(ctx, mode),
			Overridden: overridden,
		})
	}
}

func putRulesHandler(rules *service.RulesResolver, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rules == nil {
			writeError(w, http.StatusServiceUnavailable, "rules not configured")
			return
		}
		mode, ok := modeParam(w, r)
		if !ok {
			return
		}
		ctx, span := tracer.Start(r.Context(), "PUT /v1/rules/{mode}")
		defer span.End()

		var req rulesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := rules.SaveOverride(ctx, mode, req.Text); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rulesResponse{
			Mode:       mode,
			Key:        mode.StorageKey(),
			Rules:      req.Text,
			Overridden: true,
		})
	}
}

func deleteRulesHandler(rules *service.RulesResolver, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rules == nil {
			writeError(w, http.StatusServiceUnavailable, "rules not configured")
			return
		}
		mode, ok := modeParam(w, r)
		if !ok {
			return
		}
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/rules/{mode}")
		defer span.End()

		if err := rules.DeleteOverride(ctx, mode); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
