package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/polyscope/polyscope/pkg/types"
)

type fakeVolumeStore struct {
	windows []struct {
		start, end time.Time
		kind       types.PeriodType
	}
	rowsPerCall int64
}

func (f *fakeVolumeStore) AggregateVolumeStats(ctx context.Context, start, end time.Time, kind types.PeriodType) (int64, error) {
	f.windows = append(f.windows, struct {
		start, end time.Time
		kind       types.PeriodType
	}{start, end, kind})
	return f.rowsPerCall, nil
}

func newVolumeAggregator(t *testing.T, store VolumeStore) *VolumeAggregator {
	t.Helper()
	a, err := NewVolumeAggregator(&VolumeAggregatorConfig{Store: store, Logger: zap.NewNop()})
	require.NoError(t, err)
	return a
}

func TestAggregateRollsUpPreviousHour(t *testing.T) {
	store := &fakeVolumeStore{rowsPerCall: 7}
	now := time.Date(2026, 8, 24, 14, 20, 0, 0, time.UTC)

	rows, err := newVolumeAggregator(t, store).Aggregate(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 7, rows)

	require.Len(t, store.windows, 1)
	w := store.windows[0]
	assert.Equal(t, types.PeriodHour, w.kind)
	assert.Equal(t, time.Date(2026, 8, 24, 13, 0, 0, 0, time.UTC), w.start)
	assert.Equal(t, time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC), w.end)
}

func TestAggregateAddsDailyWindowAfterMidnight(t *testing.T) {
	store := &fakeVolumeStore{rowsPerCall: 5}
	// A Tuesday: the day rolls up but the week does not.
	now := time.Date(2026, 8, 25, 0, 10, 0, 0, time.UTC)

	rows, err := newVolumeAggregator(t, store).Aggregate(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 10, rows)

	require.Len(t, store.windows, 2)
	assert.Equal(t, types.PeriodHour, store.windows[0].kind)
	day := store.windows[1]
	assert.Equal(t, types.PeriodDay, day.kind)
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), day.start)
	assert.Equal(t, time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), day.end)
}

func TestAggregateAddsWeeklyWindowAtWeekStart(t *testing.T) {
	store := &fakeVolumeStore{rowsPerCall: 3}
	// Monday 00:10 UTC closes an hour, a day, and an ISO week.
	now := time.Date(2026, 8, 24, 0, 10, 0, 0, time.UTC)

	rows, err := newVolumeAggregator(t, store).Aggregate(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 9, rows)

	require.Len(t, store.windows, 3)
	assert.Equal(t, types.PeriodHour, store.windows[0].kind)
	assert.Equal(t, types.PeriodDay, store.windows[1].kind)
	week := store.windows[2]
	assert.Equal(t, types.PeriodWeek, week.kind)
	assert.Equal(t, time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC), week.start)
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), week.end)
}
