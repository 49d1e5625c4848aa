package jobsapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/rafaeljc/valkyrie/internal/logger"
	"github.com/rafaeljc/valkyrie/internal/ruleengine"
	"github.com/rafaeljc/valkyrie/internal/store"
)

// handleEvaluatePlayer processes POST /players/{playerID}/evaluate.
// The optional body is the event context; an empty body evaluates with no event.
func (a *API) handleEvaluatePlayer(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	tenantID := chi.URLParam(r, "tenantID")
	playerID := chi.URLParam(r, "playerID")

	var ec ruleengine.Context
	if err := render.DecodeJSON(r.Body, &ec); err != nil && !errors.Is(err, io.EOF) {
		log.Warn("invalid json payload", slog.String("error", err.Error()))
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "ERR_PAYLOAD_TOO_LARGE", "Request body too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "ERR_INVALID_JSON", "Invalid JSON payload: "+err.Error())
		return
	}

	report := a.svc.EvaluatePlayer(r.Context(), tenantID, playerID, ec)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, report)
}

// handleRecomputeSegments processes POST /segments/recompute.
func (a *API) handleRecomputeSegments(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.RecomputeSegments(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		a.handleCoreError(w, r, err, "failed to recompute segments")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, res)
}

// handleCheckSegment processes GET /segments/{segmentID}/players/{playerID}.
func (a *API) handleCheckSegment(w http.ResponseWriter, r *http.Request) {
	resp := MembershipResponse{
		TenantID:  chi.URLParam(r, "tenantID"),
		SegmentID: chi.URLParam(r, "segmentID"),
		PlayerID:  chi.URLParam(r, "playerID"),
	}

	member, err := a.svc.CheckSegment(r.Context(), resp.TenantID, resp.SegmentID, resp.PlayerID)
	if err != nil {
		a.handleCoreError(w, r, err, "failed to check segment membership")
		return
	}
	resp.Member = member

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// handleSweep processes POST /sweep.
func (a *API) handleSweep(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.Sweep(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		a.handleCoreError(w, r, err, "failed to sweep players")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, res)
}

// handleInvalidateRules processes DELETE /rules/cache.
func (a *API) handleInvalidateRules(w http.ResponseWriter, r *http.Request) {
	a.rules.Invalidate(chi.URLParam(r, "tenantID"))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCoreError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "ERR_NOT_FOUND", "Resource not found")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "ERR_TIMEOUT", "Operation timed out")
	default:
		logger.FromContext(r.Context()).Error(msg, slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, "ERR_INTERNAL", "Internal server error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Code: code, Message: msg})
}
