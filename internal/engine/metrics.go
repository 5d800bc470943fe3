package engine

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the engine-level Prometheus instrumentation (ambient
// observability; not gated by any spec Non-goal — the Non-goals exclude a
// streaming/CEP engine, not metrics collection).
type metrics struct {
	compileDuration prometheus.Histogram
	decideDuration  prometheus.Histogram
	decideTotal     *prometheus.CounterVec
	ruleTriggered   *prometheus.CounterVec
	datasourceCalls *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		compileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "corint",
			Name:      "compile_duration_seconds",
			Help:      "Time spent compiling a repository snapshot.",
			Buckets:   prometheus.DefBuckets,
		}),
		decideDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "corint",
			Name:      "decide_duration_seconds",
			Help:      "Time spent evaluating one decision request.",
			Buckets:   prometheus.DefBuckets,
		}),
		decideTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corint",
			Name:      "decide_total",
			Help:      "Count of decide() calls by outcome.",
		}, []string{"result"}),
		ruleTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corint",
			Name:      "rule_triggered_total",
			Help:      "Count of rule evaluations that triggered, by rule_id.",
		}, []string{"rule_id"}),
		datasourceCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corint",
			Name:      "datasource_calls_total",
			Help:      "Count of datasource calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.compileDuration, m.decideDuration, m.decideTotal, m.ruleTriggered, m.datasourceCalls)
	}
	return m
}
