package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connection metrics
	PoolConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "synccore_pool_connected",
			Help: "Whether the API pool currently has a live connection (1) or not (0)",
		},
	)

	PoolIdleConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "synccore_pool_idle_connections",
			Help: "Number of idle connections currently cached in the API pool",
		},
	)

	PoolDialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synccore_pool_dials_total",
			Help: "Total number of TLS dials attempted by the API pool, by outcome",
		},
		[]string{"outcome"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synccore_api_requests_total",
			Help: "Total number of API commands run, by command name and result category",
		},
		[]string{"command", "result"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "synccore_api_request_duration_seconds",
			Help:    "API command round-trip duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	// Transfer metrics
	BytesUploadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "synccore_bytes_uploaded_total",
			Help: "Total bytes uploaded to the remote account",
		},
	)

	BytesDownloadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "synccore_bytes_downloaded_total",
			Help: "Total bytes downloaded from the remote account",
		},
	)

	TransferDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "synccore_transfer_duration_seconds",
			Help:    "Duration of a single upload or download transfer in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
		[]string{"direction"},
	)

	TransfersFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synccore_transfers_failed_total",
			Help: "Total number of failed transfers, by direction and failure reason",
		},
		[]string{"direction", "result"},
	)

	// Quota metrics
	QuotaUsedBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "synccore_quota_used_bytes",
			Help: "Account storage quota currently used, in bytes",
		},
	)

	QuotaTotalBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "synccore_quota_total_bytes",
			Help: "Account storage quota total, in bytes",
		},
	)

	LocalFull = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "synccore_local_full",
			Help: "Whether the account is over quota and uploads are paused (1) or not (0)",
		},
	)

	// Metastore metrics
	MetastoreTxDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "synccore_metastore_tx_duration_seconds",
			Help:    "Duration of a metastore transaction in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Classifier metrics
	FilesClassifiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synccore_files_classified_total",
			Help: "Total number of files classified, by category",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(PoolConnected)
	prometheus.MustRegister(PoolIdleConnections)
	prometheus.MustRegister(PoolDialsTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(BytesUploadedTotal)
	prometheus.MustRegister(BytesDownloadedTotal)
	prometheus.MustRegister(TransferDuration)
	prometheus.MustRegister(TransfersFailedTotal)
	prometheus.MustRegister(QuotaUsedBytes)
	prometheus.MustRegister(QuotaTotalBytes)
	prometheus.MustRegister(LocalFull)
	prometheus.MustRegister(MetastoreTxDuration)
	prometheus.MustRegister(FilesClassifiedTotal)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
