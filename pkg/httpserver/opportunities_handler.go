package httpserver

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/internal/scoring"
	"github.com/polyscope/polyscope/pkg/types"
)

// safeReportTTL bounds how stale a cached scoring report may be served.
const safeReportTTL = 30 * time.Second

const safeReportCacheKey = "opportunities:safe"

// handleOpportunities serves GET /api/opportunities: active cross-market
// arbitrage alerts, newest first.
func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.store.ActiveCrossMarketAlerts(r.Context())
	if err != nil {
		s.logger.Error("list-opportunities-failed", zap.Error(err))
		s.writeError(w, "failed to list opportunities", http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []*types.Alert{}
	}

	s.writeJSON(w, http.StatusOK, AlertsResponse{Alerts: alerts, Count: len(alerts)})
}

// handleSafeOpportunities serves GET /api/opportunities/safe. Scoring runs a
// fixed number of batch queries, so reports are briefly cached.
func (s *Server) handleSafeOpportunities(w http.ResponseWriter, r *http.Request) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(safeReportCacheKey); ok {
			if report, ok := cached.(*scoring.Report); ok {
				s.writeJSON(w, http.StatusOK, report)
				return
			}
		}
	}

	report, err := s.scorer.Evaluate(r.Context(), time.Now().UTC())
	if err != nil {
		s.logger.Error("score-opportunities-failed", zap.Error(err))
		s.writeError(w, "failed to score opportunities", http.StatusInternalServerError)
		return
	}
	if report.Safe == nil {
		report.Safe = []*scoring.Opportunity{}
	}
	if report.Learning == nil {
		report.Learning = []*scoring.Opportunity{}
	}

	if s.cache != nil {
		s.cache.Set(safeReportCacheKey, report, safeReportTTL)
	}
	s.writeJSON(w, http.StatusOK, report)
}
