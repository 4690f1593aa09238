package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Enqueue inserts a new pending job. Duplicate submissions (same ISBN, or
// same title+author when no ISBN is known) are ignored; the return value
// reports whether a new job was created.
func (w *Warehouse) Enqueue(ctx context.Context, isbn, title, author string) (bool, error) {
	result, err := w.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO jobs (job_id, isbn, title, author, status)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), isbn, title, author, StatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read enqueue result: %w", err)
	}
	return rows > 0, nil
}

// Claim atomically moves up to batchSize eligible jobs to processing and
// returns them. Eligible means pending, or failed with fewer than maxRetries
// attempts recorded. Jobs at the retry ceiling stay failed until explicitly
// requeued.
//
// Each claim is a compare-and-set on the row's current status, so concurrent
// workers never claim the same job twice.
func (w *Warehouse) Claim(ctx context.Context, batchSize, maxRetries int) ([]Job, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT job_id, isbn, title, author, status, retry_count
		FROM jobs
		WHERE status = ? OR (status = ? AND retry_count < ?)
		ORDER BY created_at
		LIMIT ?`,
		StatusPending, StatusFailed, maxRetries, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.ISBN, &job.Title, &job.Author, &job.Status, &job.RetryCount); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		candidates = append(candidates, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read eligible jobs: %w", err)
	}

	var claimed []Job
	for _, job := range candidates {
		result, err := w.db.ExecContext(ctx, `
			UPDATE jobs
			SET status = ?, updated_at = CURRENT_TIMESTAMP
			WHERE job_id = ? AND status = ?`,
			StatusProcessing, job.ID, job.Status)
		if err != nil {
			return nil, fmt.Errorf("failed to claim job %s: %w", job.ID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read claim result: %w", err)
		}
		if affected == 0 {
			// Another worker got there first.
			slog.Debug("Job claimed by another worker", "job_id", job.ID)
			continue
		}
		job.Status = StatusProcessing
		claimed = append(claimed, job)
	}
	return claimed, nil
}

// Complete marks a processing job as completed.
func (w *Warehouse) Complete(ctx context.Context, jobID string) error {
	return w.transition(ctx, jobID, StatusCompleted, "")
}

// Fail marks a processing job as failed, records the error and increments the
// retry counter.
func (w *Warehouse) Fail(ctx context.Context, jobID string, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	result, err := w.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, last_error = ?, retry_count = retry_count + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE job_id = ? AND status = ?`,
		StatusFailed, message, jobID, StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to fail job %s: %w", jobID, err)
	}
	return requireTransition(result, jobID)
}

// RequeueFailed resets failed jobs back to pending with a fresh retry budget.
// Returns the number of jobs requeued.
func (w *Warehouse) RequeueFailed(ctx context.Context) (int64, error) {
	result, err := w.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, retry_count = 0, last_error = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE status = ?`,
		StatusPending, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue jobs: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read requeue result: %w", err)
	}
	return count, nil
}

// CountByStatus returns the number of jobs per lifecycle state.
func (w *Warehouse) CountByStatus(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := w.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[JobStatus]int)
	for rows.Next() {
		var status JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// GetJob fetches a single job by ID.
func (w *Warehouse) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	var lastError sql.NullString
	err := w.db.QueryRowContext(ctx, `
		SELECT job_id, isbn, title, author, status, retry_count, last_error, created_at, updated_at
		FROM jobs WHERE job_id = ?`, jobID).
		Scan(&job.ID, &job.ISBN, &job.Title, &job.Author, &job.Status,
			&job.RetryCount, &lastError, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	job.LastError = lastError.String
	return &job, nil
}

func (w *Warehouse) transition(ctx context.Context, jobID string, to JobStatus, lastError string) error {
	result, err := w.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, last_error = NULLIF(?, ''), updated_at = CURRENT_TIMESTAMP
		WHERE job_id = ? AND status = ?`,
		to, lastError, jobID, StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to transition job %s to %s: %w", jobID, to, err)
	}
	return requireTransition(result, jobID)
}

func requireTransition(result sql.Result, jobID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read transition result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %s is not in processing state", jobID)
	}
	return nil
}
