package analyzer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/internal/storage"
	"github.com/polyscope/polyscope/pkg/types"
)

const (
	// minBaselineTrades is the trade count below which a token has no
	// meaningful baseline.
	minBaselineTrades = 10

	// baselineHours is the width of the baseline window [now-24h, now-1h).
	baselineHours = 23.0

	// flashSpikeThreshold is the minimum flash ratio: 15-minute volume over
	// a quarter of the hourly average.
	flashSpikeThreshold = 5.0
)

// VolumeAnalyzer detects hourly and 15-minute volume anomalies against a
// 23-hour baseline.
type VolumeAnalyzer struct {
	store     Store
	threshold float64
	logger    *zap.Logger
}

// VolumeAnalyzerConfig holds volume analyzer configuration.
type VolumeAnalyzerConfig struct {
	Store     Store
	Threshold float64 // standard spike ratio, e.g. 3.0
	Logger    *zap.Logger
}

// NewVolumeAnalyzer creates a volume analyzer.
func NewVolumeAnalyzer(cfg *VolumeAnalyzerConfig) (*VolumeAnalyzer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Threshold <= 1 {
		return nil, fmt.Errorf("threshold must exceed 1")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &VolumeAnalyzer{store: cfg.Store, threshold: cfg.Threshold, logger: cfg.Logger}, nil
}

// Name implements Analyzer.
func (a *VolumeAnalyzer) Name() string { return "volume" }

// Analyze computes trade windows for every tracked token in one grouped query
// and emits one alert per spiking token.
func (a *VolumeAnalyzer) Analyze(ctx context.Context, now time.Time) (int, error) {
	refs, err := a.store.TrackedTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("load tracked tokens: %w", err)
	}
	windows, err := a.store.TradeWindows(ctx, storage.TokenIDs(refs), now)
	if err != nil {
		return 0, fmt.Errorf("load trade windows: %w", err)
	}

	var candidates []*candidateAlert
	for _, ref := range refs {
		stats, ok := windows[ref.TokenID]
		if !ok {
			continue
		}
		spike := DetectVolumeSpike(stats, a.threshold)
		if spike == nil {
			continue
		}
		spike.TokenID = ref.TokenID
		spike.Outcome = ref.Outcome

		candidates = append(candidates, newCandidate(&types.Alert{
			Kind:     types.AlertVolumeSpike,
			Severity: volumeSeverity(spike.Ratio),
			Title:    fmt.Sprintf("Volume spike on %s", ref.Outcome),
			Description: fmt.Sprintf("%s volume is %.1fx the hourly average (%.0f vs %.0f avg)",
				spike.SpikeType, spike.Ratio, spike.RecentVolume, spike.HourlyAverage),
			MarketID:  ref.MarketID,
			DedupKey:  types.SingleMarketDedupKey(ref.MarketID, ref.TokenID),
			Data:      spike,
			CreatedAt: now,
		}))
	}

	return persistAlerts(ctx, a.store, types.AlertVolumeSpike, candidates)
}

// DetectVolumeSpike evaluates one token's windows. When both the standard and
// the flash condition hold, the larger ratio decides the tag. Returns nil
// when no spike is present.
func DetectVolumeSpike(stats *storage.TradeWindowStats, threshold float64) *types.VolumeSpikeData {
	if stats.BaselineCount < minBaselineTrades {
		return nil
	}
	hourlyAvg := stats.BaselineVolume / baselineHours
	if hourlyAvg <= 0 {
		return nil
	}

	standardRatio := stats.RecentVolume / hourlyAvg
	flashRatio := stats.FlashVolume / (hourlyAvg / 4)

	standard := standardRatio >= threshold
	flash := flashRatio >= flashSpikeThreshold

	switch {
	case flash && (!standard || flashRatio > standardRatio):
		return &types.VolumeSpikeData{
			SpikeType:     "flash_spike",
			Ratio:         flashRatio,
			RecentVolume:  stats.FlashVolume,
			HourlyAverage: hourlyAvg,
			BaselineCount: stats.BaselineCount,
		}
	case standard:
		return &types.VolumeSpikeData{
			SpikeType:     "volume_spike",
			Ratio:         standardRatio,
			RecentVolume:  stats.RecentVolume,
			HourlyAverage: hourlyAvg,
			BaselineCount: stats.BaselineCount,
		}
	}
	return nil
}

// volumeSeverity maps a spike ratio to a severity: [3,5) medium, >=5 high.
func volumeSeverity(ratio float64) types.Severity {
	if ratio >= 5 {
		return types.SeverityHigh
	}
	return types.SeverityMedium
}
