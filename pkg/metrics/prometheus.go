package metrics

import (
	"TradePulse/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tradepulse"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ingested      *prometheus.CounterVec
	malformed     *prometheus.CounterVec
	late          *prometheus.CounterVec
	mailboxDrops  *prometheus.CounterVec
	rejected      *prometheus.CounterVec
	snapshots     *prometheus.CounterVec
	alerts        *prometheus.CounterVec
	sinkWrites    *prometheus.CounterVec
	sinkRetries   *prometheus.CounterVec
	sinkFailures  *prometheus.CounterVec
	sinkDrops     *prometheus.CounterVec
	sinkDegraded  *prometheus.CounterVec
	restarts      *prometheus.CounterVec
	activeSymbols prometheus.Gauge
	lastPrice     *prometheus.GaugeVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New registers the recorder on the default registry. Call it once.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}

	return &Recorder{
		ingested:     counter("events_ingested_total", "Trades accepted by the router", "symbol"),
		malformed:    counter("events_malformed_total", "Trades dropped as malformed", "reason"),
		late:         counter("events_late_total", "Trades behind the watermark", "symbol"),
		mailboxDrops: counter("mailbox_drops_total", "Trades dropped on a full worker mailbox", "symbol"),
		rejected:     counter("events_rejected_total", "Trades rejected by routing", "reason"),
		snapshots:    counter("snapshots_emitted_total", "Metrics snapshots emitted", "symbol"),
		alerts:       counter("alerts_emitted_total", "Anomaly alerts emitted", "symbol", "type"),
		sinkWrites:   counter("sink_writes_total", "Successful sink writes", "sink"),
		sinkRetries:  counter("sink_retries_total", "Sink write retries", "sink"),
		sinkFailures: counter("sink_failures_total", "Failed sink write attempts", "sink"),
		sinkDrops:    counter("sink_drops_total", "Items dropped from a full outbox lane", "sink"),
		sinkDegraded: counter("sink_degraded_total", "Items given up after exhausting retries", "sink"),
		restarts:     counter("worker_restarts_total", "Symbol workers reseeded after corruption", "symbol"),
		activeSymbols: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_symbols",
			Help:      "Number of live symbol workers",
		}),
		lastPrice: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_price",
			Help:      "Last emitted price for a symbol",
		}, []string{"symbol"}),
		errorsTotal: counter("errors_total", "Total number of errors encountered", "type"),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (r *Recorder) RecordIngested(symbol string) { r.ingested.WithLabelValues(symbol).Inc() }

func (r *Recorder) RecordMalformed(reason string) { r.malformed.WithLabelValues(reason).Inc() }

func (r *Recorder) RecordLate(symbol string) { r.late.WithLabelValues(symbol).Inc() }

func (r *Recorder) RecordMailboxDrop(symbol string) { r.mailboxDrops.WithLabelValues(symbol).Inc() }

func (r *Recorder) RecordRejected(reason string) { r.rejected.WithLabelValues(reason).Inc() }

func (r *Recorder) RecordSnapshot(symbol string) { r.snapshots.WithLabelValues(symbol).Inc() }

func (r *Recorder) RecordAlert(symbol string, kind models.AlertType) {
	r.alerts.WithLabelValues(symbol, string(kind)).Inc()
}

func (r *Recorder) RecordSinkWrite(sink string) { r.sinkWrites.WithLabelValues(sink).Inc() }

func (r *Recorder) RecordSinkRetry(sink string) { r.sinkRetries.WithLabelValues(sink).Inc() }

func (r *Recorder) RecordSinkFailure(sink string) { r.sinkFailures.WithLabelValues(sink).Inc() }

func (r *Recorder) RecordSinkDrop(sink string) { r.sinkDrops.WithLabelValues(sink).Inc() }

func (r *Recorder) RecordSinkDegraded(sink string) { r.sinkDegraded.WithLabelValues(sink).Inc() }

func (r *Recorder) RecordWorkerRestart(symbol string) { r.restarts.WithLabelValues(symbol).Inc() }

func (r *Recorder) RecordActiveSymbols(n int) { r.activeSymbols.Set(float64(n)) }

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) { r.errorsTotal.WithLabelValues(kind).Inc() }

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
