package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/internal/scoring"
	"github.com/polyscope/polyscope/internal/storage"
	"github.com/polyscope/polyscope/pkg/healthprobe"
	"github.com/polyscope/polyscope/pkg/types"
)

type fakeStore struct {
	alerts        []*types.Alert
	lastFilter    *storage.AlertFilter
	dismissed     []int64
	dismissErr    error
	opportunities []*types.Alert
	raw           *types.OrderBookLatestRaw
	runs          []*types.JobRun
	volume        []*types.VolumeStats
	volumePeriod  types.PeriodType
	volumeLimit   int
}

func (f *fakeStore) ListAlerts(ctx context.Context, filter *storage.AlertFilter) ([]*types.Alert, error) {
	f.lastFilter = filter
	return f.alerts, nil
}

func (f *fakeStore) DismissAlert(ctx context.Context, id int64) error {
	if f.dismissErr != nil {
		return f.dismissErr
	}
	f.dismissed = append(f.dismissed, id)
	return nil
}

func (f *fakeStore) ActiveCrossMarketAlerts(ctx context.Context) ([]*types.Alert, error) {
	return f.opportunities, nil
}

func (f *fakeStore) LatestRaw(ctx context.Context, tokenID string) (*types.OrderBookLatestRaw, error) {
	if f.raw == nil || f.raw.TokenID != tokenID {
		return nil, sql.ErrNoRows
	}
	return f.raw, nil
}

func (f *fakeStore) LatestJobRuns(ctx context.Context) ([]*types.JobRun, error) {
	return f.runs, nil
}

func (f *fakeStore) VolumeStatsForToken(ctx context.Context, tokenID string, periodType types.PeriodType, limit int) ([]*types.VolumeStats, error) {
	f.volumePeriod = periodType
	f.volumeLimit = limit
	return f.volume, nil
}

type fakeScorer struct {
	report *scoring.Report
	calls  int
}

func (f *fakeScorer) Evaluate(ctx context.Context, now time.Time) (*scoring.Report, error) {
	f.calls++
	return f.report, nil
}

func newTestServer(store *fakeStore, scorer Scorer) *Server {
	hc := healthprobe.New()
	hc.SetReady(true)
	return New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: hc,
		Store:         store,
		Scorer:        scorer,
	})
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	w := serve(newTestServer(&fakeStore{}, nil), http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Errorf("Health status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	w := serve(newTestServer(&fakeStore{}, nil), http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Errorf("Metrics status = %d, want %d", w.Code, http.StatusOK)
	}

	body, err := io.ReadAll(w.Body)
	if err != nil {
		t.Fatalf("Failed to read metrics body: %v", err)
	}
	if len(body) == 0 {
		t.Error("Metrics endpoint returned empty body")
	}
}

func TestListAlertsAppliesFilter(t *testing.T) {
	store := &fakeStore{alerts: []*types.Alert{{ID: 1, Kind: types.AlertSpread}}}
	s := newTestServer(store, nil)

	w := serve(s, http.MethodGet, "/api/alerts?kind=spread_alert&severity=high&active=true&limit=10&offset=5")
	if w.Code != http.StatusOK {
		t.Fatalf("List alerts status = %d, want %d", w.Code, http.StatusOK)
	}

	f := store.lastFilter
	if f == nil {
		t.Fatal("Filter never reached the store")
	}
	if f.Kind != "spread_alert" || f.Severity != "high" {
		t.Errorf("Filter kind/severity = %s/%s", f.Kind, f.Severity)
	}
	if f.Active == nil || !*f.Active {
		t.Error("Filter active flag not parsed")
	}
	if f.Limit != 10 || f.Offset != 5 {
		t.Errorf("Filter limit/offset = %d/%d, want 10/5", f.Limit, f.Offset)
	}

	var resp AlertsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("Count = %d, want 1", resp.Count)
	}
}

func TestListAlertsRejectsBadParams(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{name: "bad_active", target: "/api/alerts?active=maybe"},
		{name: "bad_limit", target: "/api/alerts?limit=zero"},
		{name: "negative_offset", target: "/api/alerts?offset=-1"},
	}

	s := newTestServer(&fakeStore{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, http.MethodGet, tt.target)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestDismissAlert(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(store, nil)

	w := serve(s, http.MethodPost, "/api/alerts/42/dismiss")
	if w.Code != http.StatusOK {
		t.Fatalf("Dismiss status = %d, want %d", w.Code, http.StatusOK)
	}
	if len(store.dismissed) != 1 || store.dismissed[0] != 42 {
		t.Errorf("Dismissed ids = %v, want [42]", store.dismissed)
	}
}

func TestDismissAlertNotFound(t *testing.T) {
	store := &fakeStore{dismissErr: sql.ErrNoRows}
	w := serve(newTestServer(store, nil), http.MethodPost, "/api/alerts/7/dismiss")
	if w.Code != http.StatusNotFound {
		t.Errorf("Dismiss status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDismissAlertBadID(t *testing.T) {
	w := serve(newTestServer(&fakeStore{}, nil), http.MethodPost, "/api/alerts/abc/dismiss")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Dismiss status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSafeOpportunities(t *testing.T) {
	scorer := &fakeScorer{report: &scoring.Report{
		Safe: []*scoring.Opportunity{{MarketID: "m1", Score: 90, Safe: true}},
	}}
	w := serve(newTestServer(&fakeStore{}, scorer), http.MethodGet, "/api/opportunities/safe")
	if w.Code != http.StatusOK {
		t.Fatalf("Safe opportunities status = %d, want %d", w.Code, http.StatusOK)
	}

	var report scoring.Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	if len(report.Safe) != 1 || report.Safe[0].MarketID != "m1" {
		t.Errorf("Safe picks = %+v", report.Safe)
	}
	if report.Learning == nil {
		t.Error("Learning list should be empty, not null")
	}
}

func TestSafeOpportunitiesRouteAbsentWithoutScorer(t *testing.T) {
	w := serve(newTestServer(&fakeStore{}, nil), http.MethodGet, "/api/opportunities/safe")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d without a scorer", w.Code, http.StatusNotFound)
	}
}

func TestSlippageEndpoint(t *testing.T) {
	store := &fakeStore{raw: &types.OrderBookLatestRaw{
		TokenID:   "tok-1",
		Timestamp: time.Now().Add(-time.Minute),
		Asks: []types.Level{
			{Price: 0.50, Size: 100},
			{Price: 0.55, Size: 400},
		},
		Bids: []types.Level{{Price: 0.45, Size: 200}},
	}}
	s := newTestServer(store, nil)

	w := serve(s, http.MethodGet, "/api/orderbook/tok-1/slippage?amount=100&side=buy")
	if w.Code != http.StatusOK {
		t.Fatalf("Slippage status = %d, want %d", w.Code, http.StatusOK)
	}

	var est types.SlippageEstimate
	if err := json.NewDecoder(w.Body).Decode(&est); err != nil {
		t.Fatalf("Failed to decode estimate: %v", err)
	}
	if est.TokenID != "tok-1" || est.Side != "buy" {
		t.Errorf("Estimate token/side = %s/%s", est.TokenID, est.Side)
	}
	if est.BestPrice != 0.50 {
		t.Errorf("BestPrice = %v, want 0.50", est.BestPrice)
	}
	if est.SnapshotAgeSeconds < 55 || est.SnapshotAgeSeconds > 120 {
		t.Errorf("SnapshotAgeSeconds = %v, want about 60", est.SnapshotAgeSeconds)
	}
}

func TestSlippageValidation(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   int
	}{
		{name: "missing_amount", target: "/api/orderbook/tok-1/slippage", want: http.StatusBadRequest},
		{name: "bad_side", target: "/api/orderbook/tok-1/slippage?amount=50&side=hold", want: http.StatusBadRequest},
		{name: "unknown_token", target: "/api/orderbook/missing/slippage?amount=50", want: http.StatusNotFound},
	}

	store := &fakeStore{raw: &types.OrderBookLatestRaw{TokenID: "tok-1", Timestamp: time.Now()}}
	s := newTestServer(store, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, http.MethodGet, tt.target)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestVolumeStatsEndpoint(t *testing.T) {
	store := &fakeStore{volume: []*types.VolumeStats{
		{TokenID: "tok-1", PeriodType: types.PeriodDay, TotalVolume: 1200, TradeCount: 40},
	}}
	s := newTestServer(store, nil)

	w := serve(s, http.MethodGet, "/api/markets/tok-1/volume?period=day&limit=7")
	if w.Code != http.StatusOK {
		t.Fatalf("Volume stats status = %d, want %d", w.Code, http.StatusOK)
	}
	if store.volumePeriod != types.PeriodDay || store.volumeLimit != 7 {
		t.Errorf("Store query period/limit = %s/%d, want day/7", store.volumePeriod, store.volumeLimit)
	}

	var resp VolumeStatsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.TokenID != "tok-1" || resp.Period != types.PeriodDay {
		t.Errorf("Response token/period = %s/%s", resp.TokenID, resp.Period)
	}
	if len(resp.Windows) != 1 || resp.Windows[0].TotalVolume != 1200 {
		t.Errorf("Windows = %+v", resp.Windows)
	}
}

func TestVolumeStatsDefaultsAndValidation(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(store, nil)

	w := serve(s, http.MethodGet, "/api/markets/tok-1/volume")
	if w.Code != http.StatusOK {
		t.Fatalf("Volume stats status = %d, want %d", w.Code, http.StatusOK)
	}
	if store.volumePeriod != types.PeriodHour || store.volumeLimit != defaultVolumeWindows {
		t.Errorf("Defaults period/limit = %s/%d, want hour/%d",
			store.volumePeriod, store.volumeLimit, defaultVolumeWindows)
	}

	var resp VolumeStatsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Windows == nil {
		t.Error("Windows should be empty, not null")
	}

	for _, target := range []string{
		"/api/markets/tok-1/volume?period=month",
		"/api/markets/tok-1/volume?limit=zero",
	} {
		if w := serve(s, http.MethodGet, target); w.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want %d", target, w.Code, http.StatusBadRequest)
		}
	}
}

func TestSystemStatus(t *testing.T) {
	store := &fakeStore{runs: []*types.JobRun{
		{RunID: "r1", JobID: "collect_markets", Status: types.JobSuccess},
	}}
	w := serve(newTestServer(store, nil), http.MethodGet, "/api/system/status")
	if w.Code != http.StatusOK {
		t.Fatalf("Status endpoint = %d, want %d", w.Code, http.StatusOK)
	}

	var resp SystemStatusResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if len(resp.Jobs) != 1 || resp.Jobs[0].JobID != "collect_markets" {
		t.Errorf("Jobs = %+v", resp.Jobs)
	}
	if resp.Status != healthprobe.StatusHealthy {
		t.Errorf("Status = %s, want %s", resp.Status, healthprobe.StatusHealthy)
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	s := newTestServer(&fakeStore{}, nil)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- s.Start()
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	select {
	case err := <-serverDone:
		if err != nil {
			t.Errorf("Start() returned error after shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after shutdown")
	}
}
