package queue

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// FailureRecorder persists failed durable jobs for investigation and retry.
// Rows are keyed by job ID: a repeated failure bumps the retry count instead
// of inserting a second row.
type FailureRecorder struct {
	pool *pgxpool.Pool
}

// NewFailureRecorder initialises a recorder backed by the provided pool.
func NewFailureRecorder(pool *pgxpool.Pool) *FailureRecorder {
	return &FailureRecorder{pool: pool}
}

// Record upserts the failed job. next_retry_at is left for the retry manager
// to schedule.
func (r *FailureRecorder) Record(ctx context.Context, queueName string, job Job, reason string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx,
		`INSERT INTO job_failures (queue_name, job_id, job_name, payload, reason, retry_count, last_attempt_at)
         VALUES ($1,$2,$3,$4,$5,0,NOW())
         ON CONFLICT (job_id) DO UPDATE
            SET reason = EXCLUDED.reason,
                retry_count = job_failures.retry_count + 1,
                last_attempt_at = NOW()`,
		queueName, job.ID, job.Name, []byte(job.Payload), reason,
	)
	return err
}

// Clear removes the failure row after a successful or terminal run.
func (r *FailureRecorder) Clear(ctx context.Context, jobID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `DELETE FROM job_failures WHERE job_id = $1`, jobID)
	return err
}
