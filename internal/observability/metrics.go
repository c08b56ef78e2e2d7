package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	reportPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "report_service",
		Subsystem: "persistence",
		Name:      "last_report_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent weekly report persisted to Postgres.",
	})
	reportDeliveredGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "report_service",
		Subsystem: "delivery",
		Name:      "last_report_delivered_timestamp_seconds",
		Help:      "Unix timestamp of the most recent weekly report handed to the mail transport.",
	})
)

func init() {
	prometheus.MustRegister(reportPersistGauge, reportDeliveredGauge)
}

// RecordReportPersisted updates the persistence watermark gauge.
func RecordReportPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	reportPersistGauge.Set(float64(ts.Unix()))
}

// RecordReportDelivered updates the delivery watermark gauge.
func RecordReportDelivered(ts time.Time) {
	if ts.IsZero() {
		return
	}
	reportDeliveredGauge.Set(float64(ts.Unix()))
}
