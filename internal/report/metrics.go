package report

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	generatedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "report_service",
		Subsystem: "pipeline",
		Name:      "reports_generated_total",
		Help:      "Number of weekly reports generated, stored and delivered.",
	})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "report_service",
		Subsystem: "pipeline",
		Name:      "jobs_failed_total",
		Help:      "Number of pipeline failures grouped by step.",
	}, []string{"step"})

	uploadFailedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "report_service",
		Subsystem: "pipeline",
		Name:      "upload_failures_total",
		Help:      "Number of best-effort document uploads that failed.",
	})

	durationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "report_service",
		Subsystem: "pipeline",
		Name:      "job_duration_seconds",
		Help:      "End-to-end duration of successful report jobs.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(generatedCounter, failedCounter, uploadFailedCounter, durationHistogram)
}

func recordReportGenerated(elapsed time.Duration) {
	generatedCounter.Inc()
	durationHistogram.Observe(elapsed.Seconds())
}

func recordJobFailed(step string) {
	failedCounter.WithLabelValues(step).Inc()
}

func recordUploadFailed() {
	uploadFailedCounter.Inc()
}
