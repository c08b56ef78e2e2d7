package queue

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// InlineQueue is the fallback backend used when no durable broker is
// configured. Enqueue acknowledges without executing; the caller triggers
// ExecuteNow explicitly when synchronous-equivalent behaviour is desired.
// There is no automatic execution loop and no retry: a failed job is logged
// and terminal.
type InlineQueue struct {
	registry *Registry
	logger   *log.Logger
}

// InlineOption configures optional behaviour for the InlineQueue.
type InlineOption func(*InlineQueue)

// WithInlineLogger overrides the logger used for job outcomes.
func WithInlineLogger(logger *log.Logger) InlineOption {
	return func(q *InlineQueue) {
		q.logger = logger
	}
}

// NewInlineQueue constructs the fallback queue with its own registry.
func NewInlineQueue(opts ...InlineOption) *InlineQueue {
	q := &InlineQueue{
		registry: NewRegistry(),
		logger:   log.New(log.Writer(), "[queue] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Register binds a handler to a queue name. Last writer wins.
func (q *InlineQueue) Register(queueName string, handler Handler) {
	q.registry.Register(queueName, handler)
}

// Enqueue returns an acknowledgement job without executing anything.
func (q *InlineQueue) Enqueue(_ context.Context, queueName, jobName string, payload any) (*Job, error) {
	body, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	job := &Job{ID: "inline-" + uuid.NewString(), Name: jobName, Payload: body}
	q.logger.Printf("enqueued job %q on %q (inline mode, awaiting ExecuteNow)", jobName, queueName)
	recordEnqueued(queueName)
	return job, nil
}

// ExecuteNow runs the handler registered for queueName synchronously.
// Handler errors and panics are caught and logged; they never propagate to
// the caller. An unregistered queue name logs a warning and no-ops.
func (q *InlineQueue) ExecuteNow(ctx context.Context, queueName string, payload any) {
	handler, ok := q.registry.Lookup(queueName)
	if !ok {
		q.logger.Printf("no handler registered for %q, dropping job", queueName)
		return
	}

	body, err := marshalPayload(payload)
	if err != nil {
		q.logger.Printf("cannot marshal payload for %q: %v", queueName, err)
		return
	}
	job := Job{ID: "inline-" + uuid.NewString(), Name: queueName, Payload: body}

	defer func() {
		if rec := recover(); rec != nil {
			q.logger.Printf("job panicked (queue=%s, job=%s): %v", queueName, job.ID, rec)
			recordFailed(queueName)
		}
	}()

	if err := handler.Handle(ctx, job); err != nil {
		q.logger.Printf("job failed (queue=%s, job=%s): %v", queueName, job.ID, err)
		recordFailed(queueName)
		return
	}

	q.logger.Printf("job completed (queue=%s, job=%s)", queueName, job.ID)
	recordProcessed(queueName)
}

// Close is a no-op for the inline backend.
func (q *InlineQueue) Close() error { return nil }
