package main

import "github.com/prometheus/client_golang/prometheus"

// metrics are the Prometheus gauges aurad exposes at /metrics: one registry
// plus a handful of named gauges registered at startup.
type metrics struct {
	treeEpoch          prometheus.Gauge
	keyEpoch           prometheus.Gauge
	ampBudgetRemaining prometheus.Gauge
	consensusPhase     prometheus.Gauge
}

func newMetrics(reg *prometheus.Registry) *metrics {
	m := &metrics{
		treeEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aura_tree_epoch",
			Help: "Current ratchet tree epoch.",
		}),
		keyEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aura_key_epoch",
			Help: "Current committed threshold key epoch.",
		}),
		ampBudgetRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aura_amp_flow_budget_remaining",
			Help: "Remaining flow budget on the demo AMP channel.",
		}),
		consensusPhase: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aura_consensus_phase",
			Help: "Phase of the demo fast-path consensus instance (0=fast_path_active, 1=fallback_active, 2=committed, 3=failed).",
		}),
	}
	reg.MustRegister(m.treeEpoch, m.keyEpoch, m.ampBudgetRemaining, m.consensusPhase)
	return m
}
