package queue

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// JobProducer re-appends a previously failed job, preserving its identity.
type JobProducer interface {
	EnqueueJob(ctx context.Context, queueName string, job Job) error
}

// RetryManager re-enqueues failed durable jobs with exponential backoff and
// quarantines entries that exhaust their retry budget.
type RetryManager struct {
	pool             *pgxpool.Pool
	producer         JobProducer
	maxRetries       int
	baseDelay        time.Duration
	logger           *log.Logger
	shutdownComplete chan struct{}
}

// NewRetryManager constructs a RetryManager with the provided pool and retry
// configuration.
func NewRetryManager(pool *pgxpool.Pool, producer JobProducer, maxRetries int, baseDelay time.Duration) *RetryManager {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	return &RetryManager{
		pool:             pool,
		producer:         producer,
		maxRetries:       maxRetries,
		baseDelay:        baseDelay,
		logger:           log.New(log.Writer(), "[retry] ", log.LstdFlags),
		shutdownComplete: make(chan struct{}),
	}
}

// Start launches the polling loop. It should be called in a goroutine.
func (m *RetryManager) Start(ctx context.Context, pollInterval time.Duration, batchSize int) {
	ticker := time.NewTicker(pollInterval)
	defer func() {
		ticker.Stop()
		close(m.shutdownComplete)
	}()

	for {
		if requeued, err := m.RunOnce(ctx, batchSize); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Printf("retry pass error (requeued=%d): %v", requeued, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until the polling loop stops.
func (m *RetryManager) Wait() {
	<-m.shutdownComplete
}

// RunOnce processes a batch of failure entries and returns the count of
// successfully re-queued jobs.
func (m *RetryManager) RunOnce(ctx context.Context, batchSize int) (int, error) {
	const query = `SELECT failure_id, queue_name, job_id, job_name, payload, reason, retry_count
                     FROM job_failures
                    WHERE quarantined_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= NOW())
                    ORDER BY created_at
                    LIMIT $1`

	rows, err := m.pool.Query(ctx, query, batchSize)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	entries := make([]failureEntry, 0, batchSize)
	for rows.Next() {
		entry, scanErr := scanFailureEntry(rows)
		if scanErr != nil {
			err = errors.Join(err, scanErr)
			continue
		}
		entries = append(entries, entry)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		err = errors.Join(err, rowsErr)
	}
	rows.Close()

	requeued := 0
	for _, entry := range entries {
		if procErr := m.handleEntry(ctx, entry); procErr != nil {
			err = errors.Join(err, procErr)
		} else {
			requeued++
		}
	}
	return requeued, err
}

// handleEntry applies retry/quarantine logic for a single failure entry.
func (m *RetryManager) handleEntry(ctx context.Context, entry failureEntry) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if entry.RetryCount >= m.maxRetries {
		if _, err := tx.Exec(ctx,
			`UPDATE job_failures SET quarantined_at = NOW(), quarantine_reason = $1 WHERE failure_id = $2`,
			"retry limit reached", entry.ID,
		); err != nil {
			return err
		}
		recordQuarantined(entry.QueueName)
		m.logger.Printf("job quarantined (queue=%s, job=%s, retries=%d)", entry.QueueName, entry.JobID, entry.RetryCount)
		return tx.Commit(ctx)
	}

	// Schedule the next attempt before producing so a crashed pass cannot
	// re-enqueue the same entry in a tight loop.
	delay := m.backoffDelay(entry.RetryCount + 1)
	if _, err := tx.Exec(ctx,
		`UPDATE job_failures SET next_retry_at = NOW() + $1::interval WHERE failure_id = $2`,
		delay, entry.ID,
	); err != nil {
		return err
	}

	job := Job{ID: entry.JobID, Name: entry.JobName, Payload: entry.Payload}
	if err := m.producer.EnqueueJob(ctx, entry.QueueName, job); err != nil {
		if _, updErr := tx.Exec(ctx,
			`UPDATE job_failures SET reason = $1, last_attempt_at = NOW() WHERE failure_id = $2`,
			err.Error(), entry.ID,
		); updErr != nil {
			return errors.Join(err, updErr)
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return errors.Join(err, commitErr)
		}
		return err
	}

	recordRetried(entry.QueueName)
	return tx.Commit(ctx)
}

// backoffDelay calculates exponential backoff capped at one hour.
func (m *RetryManager) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(1<<uint(attempt-1)) * m.baseDelay
	if delay > time.Hour {
		delay = time.Hour
	}
	return delay
}

// failureEntry represents a job_failures row selected for processing.
type failureEntry struct {
	ID         int64
	QueueName  string
	JobID      string
	JobName    string
	Payload    []byte
	Reason     string
	RetryCount int
}

func scanFailureEntry(rows pgx.Rows) (failureEntry, error) {
	var entry failureEntry
	if err := rows.Scan(&entry.ID, &entry.QueueName, &entry.JobID, &entry.JobName, &entry.Payload, &entry.Reason, &entry.RetryCount); err != nil {
		return failureEntry{}, err
	}
	return entry, nil
}
