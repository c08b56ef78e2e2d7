// Package queue provides the job execution abstraction: a durable
// Kafka-backed queue and an in-process synchronous fallback behind the same
// enqueue/register surface. The backend is chosen once at startup from
// configuration and never switches at runtime.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// ErrSkipRetry marks a handler failure as terminal. Durable-mode processing
// commits the message and never re-enqueues; wrap it around errors that a
// retry cannot fix (missing project, duplicate report, render fault).
var ErrSkipRetry = errors.New("job failed terminally")

// Job is a transient, data-carrying unit of work. It is not persisted by the
// queue itself; durable mode relies on the broker's log, fallback mode on
// the caller triggering execution.
type Job struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// Handler processes jobs pulled from a queue.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, job Job) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, job Job) error { return f(ctx, job) }

// Enqueuer is the producer surface exposed to request handlers. Both
// backends implement it.
type Enqueuer interface {
	// Enqueue appends a job to the named queue and returns an
	// acknowledgement. In fallback mode nothing executes until ExecuteNow
	// is invoked for the queue name.
	Enqueue(ctx context.Context, queueName, jobName string, payload any) (*Job, error)
}

// Registry binds queue names to handlers. It is an explicit object owned by
// the queue component, constructed once at process start; re-registering a
// name overwrites silently (last writer wins).
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds exactly one handler to the queue name.
func (r *Registry) Register(queueName string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[queueName] = handler
}

// Lookup returns the handler bound to the queue name.
func (r *Registry) Lookup(queueName string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[queueName]
	return handler, ok
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return body, nil
}
