package types

import "time"

// JobRunStatus is the lifecycle state of a scheduled invocation.
type JobRunStatus string

const (
	JobRunning JobRunStatus = "running"
	JobSuccess JobRunStatus = "success"
	JobFailed  JobRunStatus = "failed"
)

// MaxJobErrorLength bounds the stored error message.
const MaxJobErrorLength = 500

// JobRun records one scheduled invocation for observability. A run
// transitions running to exactly one of success or failed.
type JobRun struct {
	RunID            string       `json:"run_id"` // uuid
	JobID            string       `json:"job_id"`
	StartedAt        time.Time    `json:"started_at"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
	Status           JobRunStatus `json:"status"`
	ErrorMessage     string       `json:"error_message,omitempty"`
	RecordsProcessed *int         `json:"records_processed,omitempty"`
}

// TruncateJobError bounds an error message for storage.
func TruncateJobError(msg string) string {
	if len(msg) > MaxJobErrorLength {
		return msg[:MaxJobErrorLength]
	}
	return msg
}
