package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"grimm.is/bbfw/internal/ruleset"
)

// ObserveRuleset records the size of rs.
func (r *Registry) ObserveRuleset(rs *ruleset.Ruleset) {
	s := rs.Stats()
	r.Tables.WithLabelValues(rs.Name).Set(float64(s.Tables))
	r.Chains.WithLabelValues(rs.Name).Set(float64(s.Chains))
	r.Rules.WithLabelValues(rs.Name).Set(float64(s.Rules))
}

// ObserveOperation counts an operation and its duration since start.
func (r *Registry) ObserveOperation(op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.Operations.WithLabelValues(op, result).Inc()
	r.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ObserveApply records a successful restore at t.
func (r *Registry) ObserveApply(t time.Time) {
	r.LastApply.Set(float64(t.Unix()))
}

// ObserveDifferences records how many tables differ between left and right.
func (r *Registry) ObserveDifferences(left, right string, tables int) {
	r.Differences.WithLabelValues(left, right).Set(float64(tables))
}

// ObserveIssues records validation results by severity.
func (r *Registry) ObserveIssues(issues []ruleset.Issue) {
	counts := map[ruleset.Severity]int{
		ruleset.SeverityWarning:  0,
		ruleset.SeverityCritical: 0,
	}
	for _, i := range issues {
		counts[i.Severity]++
	}
	for sev, n := range counts {
		r.Issues.WithLabelValues(sev.String()).Set(float64(n))
	}
}

// WriteTextfile atomically writes every metric to path in the text
// exposition format read by node_exporter's textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
