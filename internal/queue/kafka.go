package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// KafkaQueue is the durable backend. Each queue name maps to a Kafka topic;
// jobs are appended with at-least-once delivery and consumed by a worker
// process running a Processor.
type KafkaQueue struct {
	brokers []string
	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaQueue creates a KafkaQueue producing to the given brokers.
func NewKafkaQueue(brokers []string) *KafkaQueue {
	return &KafkaQueue{
		brokers: brokers,
		writers: make(map[string]*kafka.Writer),
	}
}

// Enqueue appends the job to the queue's topic. Execution, retries and
// backoff are the worker/broker's responsibility.
func (q *KafkaQueue) Enqueue(ctx context.Context, queueName, jobName string, payload any) (*Job, error) {
	body, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	job := Job{ID: uuid.NewString(), Name: jobName, Payload: body}
	if err := q.EnqueueJob(ctx, queueName, job); err != nil {
		return nil, err
	}
	return &job, nil
}

// EnqueueJob appends a job that already carries its identity. Used by the
// retry manager so a re-enqueued job keeps its failure-tracking key.
func (q *KafkaQueue) EnqueueJob(ctx context.Context, queueName string, job Job) error {
	msg := kafka.Message{
		Key:   []byte(job.Name),
		Value: job.Payload,
		Headers: []kafka.Header{
			{Key: "job_id", Value: []byte(job.ID)},
			{Key: "job_name", Value: []byte(job.Name)},
		},
	}

	writer := q.writerForTopic(queueName)
	if err := writer.WriteMessages(ctx, msg); err != nil {
		return err
	}

	recordEnqueued(queueName)
	return nil
}

func (q *KafkaQueue) writerForTopic(topic string) *kafka.Writer {
	q.mu.Lock()
	defer q.mu.Unlock()

	if writer, ok := q.writers[topic]; ok {
		return writer
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(q.brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Async:        false,
	}
	q.writers[topic] = writer
	return writer
}

// Close releases all writers.
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var firstErr error
	for topic, writer := range q.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(q.writers, topic)
	}
	return firstErr
}
