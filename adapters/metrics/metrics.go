// Package metrics provides Prometheus metrics for configuration loading.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/artpar/conftree/ports"
)

var _ ports.Metrics = (*Collector)(nil)

// Collector holds the Prometheus metrics emitted by the loader service.
type Collector struct {
	LoadsTotal      *prometheus.CounterVec
	LoadErrors      *prometheus.CounterVec
	LoadDuration    *prometheus.HistogramVec
	SnapshotAge     prometheus.Gauge
	DecryptFailures prometheus.Counter
}

// New creates a collector registered on reg.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		LoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "conftree",
				Name:      "loads_total",
				Help:      "Total number of configuration loads",
			},
			[]string{"source"},
		),
		LoadErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "conftree",
				Name:      "load_errors_total",
				Help:      "Total number of failed configuration loads",
			},
			[]string{"source"},
		),
		LoadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "conftree",
				Name:      "load_duration_seconds",
				Help:      "Configuration load duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"source"},
		),
		SnapshotAge: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "conftree",
				Name:      "snapshot_age_seconds",
				Help:      "Seconds since the current snapshot was loaded",
			},
		),
		DecryptFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "conftree",
				Name:      "decrypt_failures_total",
				Help:      "Total number of field decryption failures",
			},
		),
	}
}

// ObserveLoad records one load attempt against a source.
func (c *Collector) ObserveLoad(source string, took time.Duration) {
	c.LoadsTotal.WithLabelValues(source).Inc()
	c.LoadDuration.WithLabelValues(source).Observe(took.Seconds())
}

// IncLoadError records a failed load for a source.
func (c *Collector) IncLoadError(source string) {
	c.LoadErrors.WithLabelValues(source).Inc()
}

// SetSnapshotAge reports the age of the current snapshot in seconds.
func (c *Collector) SetSnapshotAge(seconds float64) {
	c.SnapshotAge.Set(seconds)
}

// IncDecryptFailure records a field decryption failure.
func (c *Collector) IncDecryptFailure() {
	c.DecryptFailures.Inc()
}
