package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/polyscope/polyscope/pkg/types"
)

const (
	defaultVolumeWindows = 24
	maxVolumeWindows     = 500
)

// VolumeStatsResponse wraps the stored windows for one token.
type VolumeStatsResponse struct {
	TokenID string               `json:"token_id"`
	Period  types.PeriodType     `json:"period"`
	Windows []*types.VolumeStats `json:"windows"`
}

// handleVolumeStats serves GET /api/markets/{tokenID}/volume with optional
// period (hour, day, week) and limit query parameters.
func (s *Server) handleVolumeStats(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "tokenID")
	q := r.URL.Query()

	period := types.PeriodHour
	switch raw := q.Get("period"); raw {
	case "", string(types.PeriodHour):
	case string(types.PeriodDay):
		period = types.PeriodDay
	case string(types.PeriodWeek):
		period = types.PeriodWeek
	default:
		s.writeError(w, "period must be hour, day, or week", http.StatusBadRequest)
		return
	}

	limit := defaultVolumeWindows
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		if parsed > maxVolumeWindows {
			parsed = maxVolumeWindows
		}
		limit = parsed
	}

	windows, err := s.store.VolumeStatsForToken(r.Context(), tokenID, period, limit)
	if err != nil {
		s.logger.Error("volume-stats-failed", zap.String("token-id", tokenID), zap.Error(err))
		s.writeError(w, "failed to load volume stats", http.StatusInternalServerError)
		return
	}
	if windows == nil {
		windows = []*types.VolumeStats{}
	}

	s.writeJSON(w, http.StatusOK, VolumeStatsResponse{
		TokenID: tokenID,
		Period:  period,
		Windows: windows,
	})
}
