package healthprobe

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Status is the overall data pipeline health.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Staleness thresholds on the newest collected data point.
const (
	DegradedAfter  = 30 * time.Minute
	UnhealthyAfter = 60 * time.Minute
)

// DataTimestampFunc reports the newest collected data timestamp. A zero time
// means nothing has been collected yet.
type DataTimestampFunc func(ctx context.Context) (time.Time, error)

// HealthChecker provides health and readiness checks.
type HealthChecker struct {
	startTime     time.Time
	ready         atomic.Bool
	dataTimestamp DataTimestampFunc
}

// New creates a new HealthChecker.
func New() *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
	}
}

// SetReady marks the application as ready to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// SetDataTimestamp wires the staleness probe. Without one, Health only
// reports liveness.
func (h *HealthChecker) SetDataTimestamp(fn DataTimestampFunc) {
	h.dataTimestamp = fn
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  Status `json:"status"`
	Uptime  string `json:"uptime"`
	DataAge string `json:"data_age,omitempty"`
	Message string `json:"message,omitempty"`
}

// Evaluate classifies pipeline health from data staleness. Startup is graced:
// before any data exists, health tracks uptime against the same thresholds.
func (h *HealthChecker) Evaluate(ctx context.Context) (Status, time.Duration) {
	if h.dataTimestamp == nil {
		return StatusHealthy, 0
	}
	newest, err := h.dataTimestamp(ctx)
	if err != nil {
		return StatusUnhealthy, 0
	}
	if newest.IsZero() {
		newest = h.startTime
	}
	age := time.Since(newest)
	switch {
	case age > UnhealthyAfter:
		return StatusUnhealthy, age
	case age > DegradedAfter:
		return StatusDegraded, age
	default:
		return StatusHealthy, age
	}
}

// Health returns an HTTP handler for liveness checks. Healthy and degraded
// report 200; unhealthy reports 503 so orchestrators restart a stalled
// collector.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, age := h.Evaluate(r.Context())
		resp := HealthResponse{
			Status: status,
			Uptime: time.Since(h.startTime).String(),
		}
		if age > 0 {
			resp.DataAge = age.String()
		}
		if status != StatusHealthy {
			resp.Message = "collected data is stale"
		}

		code := http.StatusOK
		if status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Ready returns an HTTP handler for readiness checks.
// Returns 200 OK if ready, 503 Service Unavailable if not.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			resp := HealthResponse{
				Status:  StatusUnhealthy,
				Message: "application is starting",
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(resp)
			return
		}

		resp := HealthResponse{
			Status: StatusHealthy,
			Uptime: time.Since(h.startTime).String(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
