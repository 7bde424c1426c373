package infrastructure

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the downloader's prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// API call metrics
	APIRequestTotal    *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	// Transfer engine metrics
	TransferAttemptTotal *prometheus.CounterVec
	TransferBytesTotal   prometheus.Counter
	TransferDuration     *prometheus.HistogramVec

	// Ledger metrics
	LedgerUpsertTotal *prometheus.CounterVec

	// Orchestrator metrics
	VideoOutcomeTotal *prometheus.CounterVec
	ActiveWorkers     prometheus.Gauge
	RetryQueueDepth   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// Collectors already registered on reg are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		APIRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iwaradl_api_requests_total",
			Help: "Total number of platform API requests",
		}, []string{"endpoint", "status"}),

		APIRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "iwaradl_api_request_duration_seconds",
			Help:    "Platform API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		TransferAttemptTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iwaradl_transfer_attempts_total",
			Help: "Total number of transfer attempts by resulting state",
		}, []string{"state"}),

		TransferBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iwaradl_transfer_bytes_total",
			Help: "Total number of video bytes written to disk",
		}),

		TransferDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "iwaradl_transfer_duration_seconds",
			Help:    "Whole transfer duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"result"}),

		LedgerUpsertTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iwaradl_ledger_upserts_total",
			Help: "Total number of ledger upserts by result",
		}, []string{"result"}),

		VideoOutcomeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iwaradl_video_outcomes_total",
			Help: "Total number of processed videos by outcome",
		}, []string{"outcome"}),

		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "iwaradl_active_workers",
			Help: "Number of workers currently processing a video",
		}),

		RetryQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "iwaradl_retry_queue_depth",
			Help: "Number of tickets waiting in the retry queue",
		}),
	}

	m.APIRequestTotal = registerOrGet(reg, m.APIRequestTotal).(*prometheus.CounterVec)
	m.APIRequestDuration = registerOrGet(reg, m.APIRequestDuration).(*prometheus.HistogramVec)
	m.TransferAttemptTotal = registerOrGet(reg, m.TransferAttemptTotal).(*prometheus.CounterVec)
	m.TransferBytesTotal = registerOrGet(reg, m.TransferBytesTotal).(prometheus.Counter)
	m.TransferDuration = registerOrGet(reg, m.TransferDuration).(*prometheus.HistogramVec)
	m.LedgerUpsertTotal = registerOrGet(reg, m.LedgerUpsertTotal).(*prometheus.CounterVec)
	m.VideoOutcomeTotal = registerOrGet(reg, m.VideoOutcomeTotal).(*prometheus.CounterVec)
	m.ActiveWorkers = registerOrGet(reg, m.ActiveWorkers).(prometheus.Gauge)
	m.RetryQueueDepth = registerOrGet(reg, m.RetryQueueDepth).(prometheus.Gauge)

	return m
}

// registerOrGet registers c, returning the existing collector if one is already registered
func registerOrGet(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}

// ObserveAPIRequest records one API call
func (m *Metrics) ObserveAPIRequest(endpoint, status string, started time.Time) {
	if m == nil {
		return
	}
	m.APIRequestTotal.WithLabelValues(endpoint, status).Inc()
	m.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}

// ObserveTransferAttempt records the state a transfer attempt ended in
func (m *Metrics) ObserveTransferAttempt(state string) {
	if m == nil {
		return
	}
	m.TransferAttemptTotal.WithLabelValues(state).Inc()
}

// AddTransferBytes adds written bytes to the transfer counter
func (m *Metrics) AddTransferBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TransferBytesTotal.Add(float64(n))
}

// ObserveTransfer records a whole transfer
func (m *Metrics) ObserveTransfer(result string, started time.Time) {
	if m == nil {
		return
	}
	m.TransferDuration.WithLabelValues(result).Observe(time.Since(started).Seconds())
}

// ObserveLedgerUpsert records an upsert result
func (m *Metrics) ObserveLedgerUpsert(result string) {
	if m == nil {
		return
	}
	m.LedgerUpsertTotal.WithLabelValues(result).Inc()
}

// ObserveOutcome records a processed video
func (m *Metrics) ObserveOutcome(kind string) {
	if m == nil {
		return
	}
	m.VideoOutcomeTotal.WithLabelValues(kind).Inc()
}

// WorkerStarted increments the active worker gauge
func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.ActiveWorkers.Inc()
}

// WorkerFinished decrements the active worker gauge
func (m *Metrics) WorkerFinished() {
	if m == nil {
		return
	}
	m.ActiveWorkers.Dec()
}

// SetRetryQueueDepth sets the retry queue gauge
func (m *Metrics) SetRetryQueueDepth(n int) {
	if m == nil {
		return
	}
	m.RetryQueueDepth.Set(float64(n))
}
