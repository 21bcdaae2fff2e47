// Package metrics exposes bbfw activity as Prometheus metrics. bbfw is a
// short-lived command, so metrics are written to a node_exporter textfile
// instead of being served.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bbfw"

// Registry holds all bbfw metrics.
type Registry struct {
	reg *prometheus.Registry

	// Ruleset size, labelled by ruleset name (live, config, ...)
	Tables *prometheus.GaugeVec
	Chains *prometheus.GaugeVec
	Rules  *prometheus.GaugeVec

	// Operations
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	LastApply  prometheus.Gauge

	// Comparison results
	Differences *prometheus.GaugeVec
	Issues      *prometheus.GaugeVec
}

// New returns a registry with every bbfw metric registered.
func New() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}
	factory := promauto.With(r.reg)

	r.Tables = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ruleset_tables",
		Help:      "Number of tables in a ruleset",
	}, []string{"ruleset"})

	r.Chains = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ruleset_chains",
		Help:      "Number of chains in a ruleset",
	}, []string{"ruleset"})

	r.Rules = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ruleset_rules",
		Help:      "Number of rules in a ruleset",
	}, []string{"ruleset"})

	r.Operations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Operations run, by command and result",
	}, []string{"operation", "result"})

	r.Duration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of operations",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"operation"})

	r.LastApply = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_apply_timestamp_seconds",
		Help:      "Unix time of the last successful restore",
	})

	r.Differences = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "differences",
		Help:      "Tables that differ in the last comparison",
	}, []string{"left", "right"})

	r.Issues = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "validation_issues",
		Help:      "Validation issues found, by severity",
	}, []string{"severity"})

	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
