package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/polyscope/polyscope/pkg/types"
)

type fakeJobStore struct {
	mu        sync.Mutex
	inserted  []*types.JobRun
	completed []completedRun
}

type completedRun struct {
	runID   string
	status  types.JobRunStatus
	errMsg  string
	records *int
}

func (f *fakeJobStore) InsertJobRun(ctx context.Context, run *types.JobRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, run)
	return nil
}

func (f *fakeJobStore) CompleteJobRun(ctx context.Context, runID string, status types.JobRunStatus, errMsg string, records *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, completedRun{runID: runID, status: status, errMsg: errMsg, records: records})
	return nil
}

func newTestScheduler(t *testing.T, store Store) *Scheduler {
	t.Helper()
	s, err := New(&Config{Store: store, Logger: zap.NewNop()})
	require.NoError(t, err)
	return s
}

func TestTriggerRecordsSuccessfulRun(t *testing.T) {
	store := &fakeJobStore{}
	s := newTestScheduler(t, store)
	require.NoError(t, s.Register(&Job{
		ID:    "collect_markets",
		Every: time.Hour,
		Run:   func(ctx context.Context) (int, error) { return 42, nil },
	}))

	require.NoError(t, s.Trigger(context.Background(), "collect_markets"))

	require.Len(t, store.inserted, 1)
	run := store.inserted[0]
	assert.Equal(t, "collect_markets", run.JobID)
	assert.Equal(t, types.JobRunning, run.Status)
	assert.NotEmpty(t, run.RunID)

	require.Len(t, store.completed, 1)
	done := store.completed[0]
	assert.Equal(t, run.RunID, done.runID)
	assert.Equal(t, types.JobSuccess, done.status)
	require.NotNil(t, done.records)
	assert.Equal(t, 42, *done.records)
}

func TestTriggerRecordsFailure(t *testing.T) {
	store := &fakeJobStore{}
	s := newTestScheduler(t, store)
	require.NoError(t, s.Register(&Job{
		ID:    "collect_trades",
		Every: time.Hour,
		Run:   func(ctx context.Context) (int, error) { return 0, errors.New("upstream down") },
	}))

	err := s.Trigger(context.Background(), "collect_trades")
	require.Error(t, err)

	require.Len(t, store.completed, 1)
	assert.Equal(t, types.JobFailed, store.completed[0].status)
	assert.Equal(t, "upstream down", store.completed[0].errMsg)
}

func TestTriggerUnknownJob(t *testing.T) {
	s := newTestScheduler(t, &fakeJobStore{})
	assert.Error(t, s.Trigger(context.Background(), "nope"))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	s := newTestScheduler(t, &fakeJobStore{})
	job := func() *Job {
		return &Job{ID: "j", Every: time.Minute, Run: func(ctx context.Context) (int, error) { return 0, nil }}
	}
	require.NoError(t, s.Register(job()))
	assert.Error(t, s.Register(job()))
}

func TestStartRunsOnCadenceUntilStopped(t *testing.T) {
	store := &fakeJobStore{}
	s := newTestScheduler(t, store)

	var runs atomic.Int32
	require.NoError(t, s.Register(&Job{
		ID:    "fast",
		Every: 10 * time.Millisecond,
		Run: func(ctx context.Context) (int, error) {
			runs.Add(1)
			return 0, nil
		},
	}))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	settled := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), settled+1, "no new runs after stop")
}

func TestStartHonorsInitialDelay(t *testing.T) {
	s := newTestScheduler(t, &fakeJobStore{})

	var runs atomic.Int32
	require.NoError(t, s.Register(&Job{
		ID:    "delayed",
		Every: time.Hour,
		Delay: 30 * time.Millisecond,
		Run: func(ctx context.Context) (int, error) {
			runs.Add(1)
			return 0, nil
		},
	}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, runs.Load(), "first run waits out the delay")
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestStopBeforeFirstRun(t *testing.T) {
	s := newTestScheduler(t, &fakeJobStore{})

	var runs atomic.Int32
	require.NoError(t, s.Register(&Job{
		ID:    "never",
		Every: time.Hour,
		Delay: time.Hour,
		Run: func(ctx context.Context) (int, error) {
			runs.Add(1)
			return 0, nil
		},
	}))

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, runs.Load())
}
