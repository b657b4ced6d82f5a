// Package metrics exposes engine activity to Prometheus.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"twammEngine/internal/errs"
)

// EngineMetrics counts engine operations and settled volume.
type EngineMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	settled    *prometheus.CounterVec
	rewards    *prometheus.CounterVec
	finalized  *prometheus.CounterVec
}

var (
	engineOnce     sync.Once
	engineRegistry *EngineMetrics
)

// Engine returns the lazily registered engine metrics.
func Engine() *EngineMetrics {
	engineOnce.Do(func() {
		engineRegistry = newEngineMetrics()
		prometheus.MustRegister(engineRegistry.collectors()...)
	})
	return engineRegistry
}

func newEngineMetrics() *EngineMetrics {
	return &EngineMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twamm",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Engine operations segmented by operation and result code.",
		}, []string{"operation", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "twamm",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Latency of engine operations including storage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twamm",
			Subsystem: "settlement",
			Name:      "net_settled_total",
			Help:      "Net amount settled against external supply, in base units of the settled token.",
		}, []string{"pair", "kind", "side"}),
		rewards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twamm",
			Subsystem: "crank",
			Name:      "rewards_total",
			Help:      "Crank rewards paid, in base units.",
		}, []string{"pair", "token"}),
		finalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twamm",
			Subsystem: "pool",
			Name:      "finalized_total",
			Help:      "Pools rotated out of their tenor slot.",
		}, []string{"pair"}),
	}
}

func (m *EngineMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.operations, m.latency, m.settled, m.rewards, m.finalized}
}

// Observe records the outcome of one operation.
func (m *EngineMetrics) Observe(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	code := "ok"
	if err != nil {
		code = errs.Code(err)
	}
	m.operations.WithLabelValues(operation, code).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSettlement adds a net settled amount.
func (m *EngineMetrics) RecordSettlement(pair, kind, side string, amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.settled.WithLabelValues(pair, kind, side).Add(float64(amount))
}

// RecordReward adds a crank reward payout.
func (m *EngineMetrics) RecordReward(pair, token string, amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.rewards.WithLabelValues(pair, token).Add(float64(amount))
}

// RecordFinalized counts a pool leaving its slot.
func (m *EngineMetrics) RecordFinalized(pair string) {
	if m == nil {
		return
	}
	m.finalized.WithLabelValues(pair).Inc()
}
