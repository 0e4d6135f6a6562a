package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/pkg/healthprobe"
	"github.com/polyscope/polyscope/pkg/types"
)

// SystemStatusResponse summarizes pipeline health and the latest run of every
// scheduled job.
type SystemStatusResponse struct {
	Status         healthprobe.Status `json:"status"`
	DataAgeSeconds float64            `json:"data_age_seconds"`
	Jobs           []*types.JobRun    `json:"jobs"`
}

// handleSystemStatus serves GET /api/system/status.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.LatestJobRuns(r.Context())
	if err != nil {
		s.logger.Error("load-job-runs-failed", zap.Error(err))
		s.writeError(w, "failed to load job runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*types.JobRun{}
	}

	status, age := s.healthChecker.Evaluate(r.Context())
	s.writeJSON(w, http.StatusOK, SystemStatusResponse{
		Status:         status,
		DataAgeSeconds: age.Seconds(),
		Jobs:           runs,
	})
}
