package healthprobe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	hc := New()

	if hc == nil {
		t.Fatal("New() returned nil")
	}

	if time.Since(hc.startTime) > 1*time.Second {
		t.Errorf("Start time is too old: %v", hc.startTime)
	}

	if hc.ready.Load() {
		t.Error("HealthChecker should not be ready by default")
	}
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name           string
		setReady       bool
		expectedStatus int
	}{
		{name: "ready_when_set", setReady: true, expectedStatus: http.StatusOK},
		{name: "not_ready_initially", setReady: false, expectedStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := New()
			if tt.setReady {
				hc.SetReady(true)
			}

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			hc.Ready().ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Ready status = %d, want %d", w.Code, tt.expectedStatus)
			}
		})
	}
}

func TestEvaluateStaleness(t *testing.T) {
	tests := []struct {
		name       string
		dataAge    time.Duration
		wantStatus Status
	}{
		{name: "fresh_data", dataAge: 5 * time.Minute, wantStatus: StatusHealthy},
		{name: "degraded_past_thirty_minutes", dataAge: 45 * time.Minute, wantStatus: StatusDegraded},
		{name: "unhealthy_past_sixty_minutes", dataAge: 90 * time.Minute, wantStatus: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := New()
			ts := time.Now().Add(-tt.dataAge)
			hc.SetDataTimestamp(func(ctx context.Context) (time.Time, error) {
				return ts, nil
			})

			status, age := hc.Evaluate(context.Background())
			if status != tt.wantStatus {
				t.Errorf("Evaluate() status = %s, want %s", status, tt.wantStatus)
			}
			if age < tt.dataAge {
				t.Errorf("Evaluate() age = %v, want at least %v", age, tt.dataAge)
			}
		})
	}
}

func TestEvaluateGracesStartup(t *testing.T) {
	hc := New()
	hc.SetDataTimestamp(func(ctx context.Context) (time.Time, error) {
		return time.Time{}, nil
	})

	status, _ := hc.Evaluate(context.Background())
	if status != StatusHealthy {
		t.Errorf("Evaluate() status = %s, want %s before first collection", status, StatusHealthy)
	}
}

func TestEvaluateProbeError(t *testing.T) {
	hc := New()
	hc.SetDataTimestamp(func(ctx context.Context) (time.Time, error) {
		return time.Time{}, errors.New("connection refused")
	})

	status, _ := hc.Evaluate(context.Background())
	if status != StatusUnhealthy {
		t.Errorf("Evaluate() status = %s, want %s on probe failure", status, StatusUnhealthy)
	}
}

func TestHealthEndpointReportsStaleness(t *testing.T) {
	hc := New()
	ts := time.Now().Add(-2 * time.Hour)
	hc.SetDataTimestamp(func(ctx context.Context) (time.Time, error) {
		return ts, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	hc.Health().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Health status code = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != StatusUnhealthy {
		t.Errorf("Health status = %s, want %s", resp.Status, StatusUnhealthy)
	}
	if resp.DataAge == "" {
		t.Error("Health response missing data age")
	}
}
