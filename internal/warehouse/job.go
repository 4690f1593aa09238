package warehouse

import "time"

// JobStatus is the lifecycle state of an enrichment job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job is one unit of enrichment work. ISBN may be empty, in which case Title
// and Author drive the source lookups.
type Job struct {
	ID         string
	ISBN       string
	Title      string
	Author     string
	Status     JobStatus
	RetryCount int
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
