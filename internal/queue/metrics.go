package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	enqueuedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "report_service",
		Subsystem: "queue",
		Name:      "jobs_enqueued_total",
		Help:      "Number of jobs appended to a queue.",
	}, []string{"queue"})

	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "report_service",
		Subsystem: "queue",
		Name:      "jobs_processed_total",
		Help:      "Number of jobs whose handler completed successfully.",
	}, []string{"queue"})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "report_service",
		Subsystem: "queue",
		Name:      "jobs_failed_total",
		Help:      "Number of handler failures grouped by queue.",
	}, []string{"queue"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "report_service",
		Subsystem: "queue",
		Name:      "decode_errors_total",
		Help:      "Number of malformed messages per topic.",
	}, []string{"topic"})

	retriedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "report_service",
		Subsystem: "queue",
		Name:      "jobs_retried_total",
		Help:      "Number of failed jobs re-enqueued by the retry manager.",
	}, []string{"queue"})

	quarantinedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "report_service",
		Subsystem: "queue",
		Name:      "jobs_quarantined_total",
		Help:      "Number of jobs quarantined after exhausting retries.",
	}, []string{"queue"})
)

func init() {
	prometheus.MustRegister(enqueuedCounter, processedCounter, failedCounter, decodeErrorCounter, retriedCounter, quarantinedCounter)
}

func recordEnqueued(queue string)    { enqueuedCounter.WithLabelValues(queue).Inc() }
func recordProcessed(queue string)   { processedCounter.WithLabelValues(queue).Inc() }
func recordFailed(queue string)      { failedCounter.WithLabelValues(queue).Inc() }
func recordDecodeError(topic string) { decodeErrorCounter.WithLabelValues(topic).Inc() }
func recordRetried(queue string)     { retriedCounter.WithLabelValues(queue).Inc() }
func recordQuarantined(queue string) { quarantinedCounter.WithLabelValues(queue).Inc() }
