package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/polyscope/polyscope/pkg/types"
)

// Job is one recurring task. Delay staggers the first run so jobs that feed
// each other (markets before order books before analysis) start in order.
type Job struct {
	ID    string
	Every time.Duration
	Delay time.Duration
	Run   func(ctx context.Context) (int, error)
}

// Store persists job run bookkeeping.
type Store interface {
	InsertJobRun(ctx context.Context, run *types.JobRun) error
	CompleteJobRun(ctx context.Context, runID string, status types.JobRunStatus, errMsg string, records *int) error
}

// Scheduler drives registered jobs on fixed intervals and records every
// invocation as a job run.
type Scheduler struct {
	store  Store
	logger *zap.Logger

	mu      sync.Mutex
	jobs    []*Job
	byID    map[string]*Job
	cancel  context.CancelFunc
	started bool
}

// Config holds scheduler configuration.
type Config struct {
	Store  Store
	Logger *zap.Logger
}

// New creates a scheduler with no jobs registered.
func New(cfg *Config) (*Scheduler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Scheduler{
		store:  cfg.Store,
		logger: cfg.Logger,
		byID:   make(map[string]*Job),
	}, nil
}

// Register adds a job. All registration happens before Start.
func (s *Scheduler) Register(job *Job) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}
	if job.ID == "" {
		return fmt.Errorf("job id cannot be empty")
	}
	if job.Every <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.ID)
	}
	if job.Run == nil {
		return fmt.Errorf("job %s: run function cannot be nil", job.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("job %s: scheduler already started", job.ID)
	}
	if _, exists := s.byID[job.ID]; exists {
		return fmt.Errorf("job %s: already registered", job.ID)
	}
	s.jobs = append(s.jobs, job)
	s.byID[job.ID] = job
	return nil
}

// Start launches one loop per registered job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		go s.loop(ctx, job)
	}

	s.logger.Info("scheduler-started", zap.Int("jobs", len(s.jobs)))
	return nil
}

// Stop cancels all job loops. It does not wait for in-flight runs; they
// observe the cancelled context and wind down on their own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.logger.Info("scheduler-stopped")
	}
}

// Trigger runs one job synchronously, outside its normal cadence. The run is
// recorded like a scheduled one.
func (s *Scheduler) Trigger(ctx context.Context, jobID string) error {
	s.mu.Lock()
	job := s.byID[jobID]
	s.mu.Unlock()
	if job == nil {
		return fmt.Errorf("unknown job %s", jobID)
	}
	return s.execute(ctx, job)
}

func (s *Scheduler) loop(ctx context.Context, job *Job) {
	delay := time.NewTimer(job.Delay)
	defer delay.Stop()
	select {
	case <-ctx.Done():
		return
	case <-delay.C:
	}
	_ = s.execute(ctx, job)

	ticker := time.NewTicker(job.Every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.execute(ctx, job)
		}
	}
}

// execute wraps one invocation in a job run record. Bookkeeping writes use a
// detached context so a shutdown mid-run still leaves a terminal status.
func (s *Scheduler) execute(ctx context.Context, job *Job) error {
	runID := uuid.NewString()
	log := s.logger.With(zap.String("job-id", job.ID), zap.String("run-id", runID))
	start := time.Now().UTC()

	bookCtx := context.WithoutCancel(ctx)
	err := s.store.InsertJobRun(bookCtx, &types.JobRun{
		RunID:     runID,
		JobID:     job.ID,
		StartedAt: start,
		Status:    types.JobRunning,
	})
	if err != nil {
		log.Error("job-run-insert-failed", zap.Error(err))
	}

	records, err := job.Run(ctx)
	elapsed := time.Since(start)
	JobDuration.WithLabelValues(job.ID).Observe(elapsed.Seconds())

	if err != nil {
		JobRuns.WithLabelValues(job.ID, string(types.JobFailed)).Inc()
		log.Error("job-failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		if cerr := s.store.CompleteJobRun(bookCtx, runID, types.JobFailed, err.Error(), &records); cerr != nil {
			log.Error("job-run-complete-failed", zap.Error(cerr))
		}
		return err
	}

	JobRuns.WithLabelValues(job.ID, string(types.JobSuccess)).Inc()
	log.Info("job-complete", zap.Int("records", records), zap.Duration("elapsed", elapsed))
	if cerr := s.store.CompleteJobRun(bookCtx, runID, types.JobSuccess, "", &records); cerr != nil {
		log.Error("job-run-complete-failed", zap.Error(cerr))
	}
	return nil
}
