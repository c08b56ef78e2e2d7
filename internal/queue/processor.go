package queue

import (
	"context"
	"errors"
	"log"

	"github.com/segmentio/kafka-go"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// FailureSink records failed jobs for later retry. Implemented by
// FailureRecorder; nil disables recording.
type FailureSink interface {
	Record(ctx context.Context, queueName string, job Job, reason string) error
	Clear(ctx context.Context, jobID string) error
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithFailureSink attaches a sink that captures failed jobs.
func WithFailureSink(sink FailureSink) Option {
	return func(p *Processor) {
		p.failures = sink
	}
}

// Processor pulls jobs from a Kafka topic and dispatches them to the handler
// registered for that topic's queue name.
type Processor struct {
	reader   Reader
	registry *Registry
	failures FailureSink
	logger   *log.Logger
}

// NewProcessor constructs a Processor with the provided reader and registry.
func NewProcessor(reader Reader, registry *Registry, opts ...Option) *Processor {
	p := &Processor{
		reader:   reader,
		registry: registry,
		logger:   log.New(log.Writer(), "[worker] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts a blocking loop that processes jobs until the context is
// cancelled. A failed handler invocation is recorded in the failure sink and
// the message committed so the retry manager owns redelivery; if recording
// itself fails the commit is skipped and the broker redelivers.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Printf("fetch error: %v", err)
			continue
		}

		job, decodeErr := decodeJob(msg)
		if decodeErr != nil {
			p.logger.Printf("decode error (topic=%s, partition=%d, offset=%d): %v", msg.Topic, msg.Partition, msg.Offset, decodeErr)
			recordDecodeError(msg.Topic)
			// Commit malformed messages to avoid poison-pill loops.
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Printf("commit error after decode failure: %v", commitErr)
			}
			continue
		}

		handler, ok := p.registry.Lookup(msg.Topic)
		if !ok {
			p.logger.Printf("no handler registered for %q, dropping job %s", msg.Topic, job.ID)
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Printf("commit error after unhandled topic: %v", commitErr)
			}
			continue
		}

		if handleErr := handler.Handle(ctx, job); handleErr != nil {
			p.logger.Printf("job failed (queue=%s, job=%s, name=%s): %v", msg.Topic, job.ID, job.Name, handleErr)
			recordFailed(msg.Topic)

			switch {
			case errors.Is(handleErr, ErrSkipRetry):
				if p.failures != nil {
					if clearErr := p.failures.Clear(ctx, job.ID); clearErr != nil {
						p.logger.Printf("failure clear error (job=%s): %v", job.ID, clearErr)
					}
				}
			case p.failures != nil:
				if recErr := p.failures.Record(ctx, msg.Topic, job, handleErr.Error()); recErr != nil {
					p.logger.Printf("failure record error, leaving message uncommitted: %v", recErr)
					continue
				}
			default:
				// No sink configured: skip the commit so the broker redelivers.
				continue
			}
		} else {
			recordProcessed(msg.Topic)
			if p.failures != nil {
				if clearErr := p.failures.Clear(ctx, job.ID); clearErr != nil {
					p.logger.Printf("failure clear error (job=%s): %v", job.ID, clearErr)
				}
			}
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.Printf("commit error: %v", commitErr)
		}
	}
}

func decodeJob(msg kafka.Message) (Job, error) {
	if len(msg.Value) == 0 {
		return Job{}, errors.New("empty payload")
	}

	name, ok := headerValue(msg, "job_name")
	if !ok {
		return Job{}, errors.New("missing job_name header")
	}

	id, _ := headerValue(msg, "job_id")
	payload := append([]byte(nil), msg.Value...)

	return Job{
		ID:      string(id),
		Name:    string(name),
		Payload: payload,
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
