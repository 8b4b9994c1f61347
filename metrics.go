package raft

import "github.com/prometheus/client_golang/prometheus"

// metricsSet is the set of Prometheus collectors one Node updates as it
// runs. Each Node gets its own registry rather than touching
// prometheus.DefaultRegisterer, so that a process hosting several Nodes (or
// a test that opens many) never hits a duplicate-registration panic.
type metricsSet struct {
	registry *prometheus.Registry

	leaderChanges  prometheus.Counter
	commitLatency  prometheus.Histogram
	logEntries     prometheus.Gauge
	term           prometheus.Gauge
	applyTotal     prometheus.Counter
}

func newMetrics() *metricsSet {
	reg := prometheus.NewRegistry()
	m := &metricsSet{
		registry: reg,
		leaderChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raft_leader_changes_total",
			Help: "Number of times this node stepped down from Leader.",
		}),
		commitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "raft_commit_latency_seconds",
			Help:    "Time from a leader appending an entry to it becoming committed.",
			Buckets: prometheus.DefBuckets,
		}),
		logEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raft_log_entries",
			Help: "Number of entries currently held in the in-memory log.",
		}),
		term: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raft_term",
			Help: "This node's current term.",
		}),
		applyTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raft_apply_total",
			Help: "Number of log entries applied to the state machine.",
		}),
	}
	reg.MustRegister(m.leaderChanges, m.commitLatency, m.logEntries, m.term, m.applyTotal)
	return m
}

// Registry exposes the node's private Prometheus registry so a hosting
// process can serve it (e.g. under /metrics alongside its own collectors).
func (n *Node) Registry() *prometheus.Registry {
	return n.metrics.registry
}
