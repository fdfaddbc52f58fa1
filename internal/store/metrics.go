package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the store's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	Operations      *prometheus.CounterVec
	OperationTime   *prometheus.HistogramVec
	Renumbers       *prometheus.CounterVec
	ProbeSteps      prometheus.Histogram
	MixedRejections prometheus.Counter
}

// NewMetrics registers the store collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "onemodel",
			Name:      "store_operations_total",
			Help:      "Mutating store operations by name and result",
		}, []string{"op", "result"}),
		OperationTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "onemodel",
			Name:      "store_operation_seconds",
			Help:      "Duration of mutating store operations",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"op"}),
		Renumbers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "onemodel",
			Name:      "sorting_renumbers_total",
			Help:      "Sorting scopes renumbered, by scope kind",
		}, []string{"scope"}),
		ProbeSteps: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "onemodel",
			Name:      "sorting_probe_steps",
			Help:      "Linear probe steps taken to find an unused sorting index",
			Buckets:   []float64{1, 10, 100, 1000, 10000},
		}),
		MixedRejections: f.NewCounter(prometheus.CounterOpts{
			Namespace: "onemodel",
			Name:      "group_mixed_class_rejections_total",
			Help:      "Group mutations rejected because they would mix classes",
		}),
	}
}

func (m *Metrics) observe(op string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !success {
		result = "error"
	}
	m.Operations.WithLabelValues(op, result).Inc()
	m.OperationTime.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) renumbered(scope string) {
	if m == nil {
		return
	}
	m.Renumbers.WithLabelValues(scope).Inc()
}

func (m *Metrics) probed(steps int) {
	if m == nil {
		return
	}
	m.ProbeSteps.Observe(float64(steps))
}

func (m *Metrics) mixedRejected() {
	if m == nil {
		return
	}
	m.MixedRejections.Inc()
}
