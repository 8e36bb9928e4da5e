package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// FixesTotal counts location fixes received by the capture pipeline, labeled by result.
	FixesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fishing",
		Subsystem: "capture",
		Name:      "fixes_total",
		Help:      "Location fixes received, labeled by result (stored, rejected, ignored, error).",
	}, []string{"result"})

	// CatchesTotal counts catch submissions, labeled by result.
	CatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fishing",
		Subsystem: "capture",
		Name:      "catches_total",
		Help:      "Catch submissions, labeled by result (stored, invalid, error).",
	}, []string{"result"})

	// TrackingActive is 1 while location tracking is running.
	TrackingActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fishing",
		Subsystem: "capture",
		Name:      "tracking_active",
		Help:      "Whether background location tracking is currently running.",
	})

	// SyncAttemptsTotal counts sync attempts by outcome.
	SyncAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fishing",
		Subsystem: "sync",
		Name:      "attempts_total",
		Help:      "Sync attempts, labeled by outcome (synced, nothing_to_send, no_auth, failed).",
	}, []string{"outcome"})

	// RecordsUploadedTotal counts records marked uploaded after acknowledgement.
	RecordsUploadedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fishing",
		Subsystem: "sync",
		Name:      "records_uploaded_total",
		Help:      "Records marked uploaded after server acknowledgement, labeled by kind (catch, position).",
	}, []string{"kind"})

	// SyncDurationSeconds is the time spent per sync attempt that reached the network.
	SyncDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fishing",
		Subsystem: "sync",
		Name:      "duration_seconds",
		Help:      "Wall time of sync attempts that called the remote endpoint.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	// LastSuccessSeconds is the unix time of the last successful sync.
	LastSuccessSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fishing",
		Subsystem: "sync",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp (seconds) of the last successful sync.",
	})
)

// Register registers all collectors with the default registry. It is safe to
// call more than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			FixesTotal,
			CatchesTotal,
			TrackingActive,
			SyncAttemptsTotal,
			RecordsUploadedTotal,
			SyncDurationSeconds,
			LastSuccessSeconds,
		)
	})
}
