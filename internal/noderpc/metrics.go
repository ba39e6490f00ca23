package noderpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespaceNode    = "nodeguard"
	subsystemRPC     = "rpc"
	subsystemSync    = "sync"
	outcomeSuccess   = "success"
	labelMethod      = "method"
	labelOutcome     = "outcome"
	labelErrCategory = "category"
)

// Metrics collects rpc call and sync state metrics. A nil *Metrics records nothing.
type Metrics struct {
	calls      *prometheus.CounterVec
	attempts   *prometheus.HistogramVec
	duration   *prometheus.HistogramVec
	ambiguous  prometheus.Counter
	height     prometheus.Gauge
	catchingUp prometheus.Gauge
	phase      *prometheus.GaugeVec
}

// NewMetrics registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemRPC,
			Name:      "calls_total",
			Help:      "logical rpc calls by method and outcome",
		}, []string{labelMethod, labelOutcome, labelErrCategory}),
		attempts: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemRPC,
			Name:      "attempts",
			Help:      "attempts made per logical rpc call",
			Buckets:   []float64{1, 2, 3, 4, 6, 8},
		}, []string{labelMethod}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemRPC,
			Name:      "call_duration_seconds",
			Help:      "wall time of a logical rpc call including backoff",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{labelMethod}),
		ambiguous: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemRPC,
			Name:      "broadcast_ambiguous_total",
			Help:      "broadcasts whose outcome could not be determined",
		}),
		height: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemSync,
			Name:      "height",
			Help:      "last observed block height",
		}),
		catchingUp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemSync,
			Name:      "catching_up",
			Help:      "1 while the node reports it is catching up",
		}),
		phase: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespaceNode,
			Subsystem: subsystemSync,
			Name:      "phase",
			Help:      "1 for the current sync phase, 0 otherwise",
		}, []string{"phase"}),
	}
}

func (m *Metrics) observeCall(method string, attempts int, elapsed time.Duration, err *CallError) {
	if m == nil {
		return
	}
	outcome, category := outcomeSuccess, ""
	if err != nil {
		outcome, category = string(err.Kind), string(err.Category())
	}
	m.calls.WithLabelValues(method, outcome, category).Inc()
	m.attempts.WithLabelValues(method).Observe(float64(attempts))
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) observeAmbiguous() {
	if m == nil {
		return
	}
	m.ambiguous.Inc()
}

func (m *Metrics) observeState(s SyncState) {
	if m == nil {
		return
	}
	m.height.Set(float64(s.Height))
	if s.CatchingUp {
		m.catchingUp.Set(1)
	} else {
		m.catchingUp.Set(0)
	}
	for _, p := range []Phase{PhaseUnknown, PhaseUnreachable, PhaseSyncing, PhaseSynced} {
		v := 0.0
		if p == s.Phase {
			v = 1
		}
		m.phase.WithLabelValues(string(p)).Set(v)
	}
}
