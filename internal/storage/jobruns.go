package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/polyscope/polyscope/pkg/types"
)

// InsertJobRun records the start of a scheduled invocation.
func (s *Store) InsertJobRun(ctx context.Context, run *types.JobRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_runs (run_id, job_id, started_at, status)
		VALUES ($1, $2, $3, $4)`,
		run.RunID, run.JobID, run.StartedAt, string(run.Status))
	if err != nil {
		return fmt.Errorf("insert job run: %w", err)
	}
	return nil
}

// CompleteJobRun transitions a run to success or failed exactly once.
func (s *Store) CompleteJobRun(ctx context.Context, runID string, status types.JobRunStatus, errMsg string, records *int) error {
	var msg any
	if errMsg != "" {
		msg = types.TruncateJobError(errMsg)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE job_runs SET status = $2, completed_at = $3, error_message = $4, records_processed = $5
		WHERE run_id = $1 AND status = $6`,
		runID, string(status), time.Now().UTC(), msg, records, string(types.JobRunning))
	if err != nil {
		return fmt.Errorf("complete job run: %w", err)
	}
	return nil
}

// LatestJobRuns returns the newest run per job id in one query. Serves the
// system status endpoint.
func (s *Store) LatestJobRuns(ctx context.Context) ([]*types.JobRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (job_id)
			run_id, job_id, started_at, completed_at, status, error_message, records_processed
		FROM job_runs
		ORDER BY job_id, started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query latest job runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*types.JobRun
	for rows.Next() {
		run, err := scanJobRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJobRun(row rowScanner) (*types.JobRun, error) {
	var (
		run         types.JobRun
		completedAt *time.Time
		errMsg      *string
		records     *int
	)
	err := row.Scan(&run.RunID, &run.JobID, &run.StartedAt, &completedAt,
		&run.Status, &errMsg, &records)
	if err != nil {
		return nil, fmt.Errorf("scan job run: %w", err)
	}
	run.StartedAt = run.StartedAt.UTC()
	if completedAt != nil {
		ts := completedAt.UTC()
		run.CompletedAt = &ts
	}
	if errMsg != nil {
		run.ErrorMessage = *errMsg
	}
	run.RecordsProcessed = records
	return &run, nil
}
