package httpserver

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/polyscope/polyscope/internal/storage"
	"github.com/polyscope/polyscope/pkg/types"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 500
)

// AlertsResponse wraps a page of alerts.
type AlertsResponse struct {
	Alerts []*types.Alert `json:"alerts"`
	Count  int            `json:"count"`
}

// handleListAlerts serves GET /api/alerts with optional kind, severity,
// market_id, active, limit, and offset query parameters.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &storage.AlertFilter{
		Kind:     q.Get("kind"),
		Severity: q.Get("severity"),
		MarketID: q.Get("market_id"),
		Limit:    defaultAlertLimit,
	}

	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, "active must be a boolean", http.StatusBadRequest)
			return
		}
		filter.Active = &active
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			s.writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		if limit > maxAlertLimit {
			limit = maxAlertLimit
		}
		filter.Limit = limit
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			s.writeError(w, "offset must be a non-negative integer", http.StatusBadRequest)
			return
		}
		filter.Offset = offset
	}

	alerts, err := s.store.ListAlerts(r.Context(), filter)
	if err != nil {
		s.logger.Error("list-alerts-failed", zap.Error(err))
		s.writeError(w, "failed to list alerts", http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []*types.Alert{}
	}

	s.writeJSON(w, http.StatusOK, AlertsResponse{Alerts: alerts, Count: len(alerts)})
}

// handleDismissAlert serves POST /api/alerts/{id}/dismiss.
func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		s.writeError(w, "alert id must be a positive integer", http.StatusBadRequest)
		return
	}

	err = s.store.DismissAlert(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeError(w, "alert not found or already dismissed", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("dismiss-alert-failed", zap.Int64("id", id), zap.Error(err))
		s.writeError(w, "failed to dismiss alert", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"dismissed": id})
}
