package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	OpsLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tradepulse",
			Subsystem: "ops",
			Name:      "latency_seconds",
			Help:      "Latency of ops endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	OpsErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradepulse",
			Subsystem: "ops",
			Name:      "errors_total",
			Help:      "Errors by ops endpoint",
		},
		[]string{"endpoint"},
	)
)

// Register adds the ops collectors to reg. Only the first call registers.
func Register(reg prometheus.Registerer) {
	once.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(OpsLatency, OpsErrors)
	})
}

// Observe records one call of endpoint that started at start.
func Observe(endpoint string, start time.Time, err error) {
	OpsLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		OpsErrors.WithLabelValues(endpoint).Inc()
	}
}
