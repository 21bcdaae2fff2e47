package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/bbfw/internal/ruleset"
)

func TestWriteTextfile(t *testing.T) {
	r := New()

	rs := ruleset.New("live")
	filter := ruleset.MustTable("filter")
	filter.Chain("INPUT").Append(ruleset.ParseRule("-j ACCEPT"))
	rs.AddTable(filter)

	r.ObserveRuleset(rs)
	r.ObserveOperation("load", time.Now(), nil)
	r.ObserveOperation("load", time.Now(), errors.New("boom"))
	r.ObserveApply(time.Unix(1700000000, 0))
	r.ObserveDifferences("live", "config", 2)
	r.ObserveIssues([]ruleset.Issue{{Severity: ruleset.SeverityCritical}})

	path := filepath.Join(t.TempDir(), "bbfw.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `bbfw_ruleset_tables{ruleset="live"} 1`)
	assert.Contains(t, text, `bbfw_ruleset_chains{ruleset="live"} 3`)
	assert.Contains(t, text, `bbfw_ruleset_rules{ruleset="live"} 1`)
	assert.Contains(t, text, `bbfw_operations_total{operation="load",result="success"} 1`)
	assert.Contains(t, text, `bbfw_operations_total{operation="load",result="failure"} 1`)
	assert.Contains(t, text, `bbfw_last_apply_timestamp_seconds 1.7e+09`)
	assert.Contains(t, text, `bbfw_differences{left="live",right="config"} 2`)
	assert.Contains(t, text, `bbfw_validation_issues{severity="critical"} 1`)
	assert.Contains(t, text, `bbfw_validation_issues{severity="warning"} 0`)
}

func TestWriteTextfileBadPath(t *testing.T) {
	err := New().WriteTextfile(filepath.Join(t.TempDir(), "missing", "bbfw.prom"))
	assert.Error(t, err)
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveApply(time.Now())

	fams, err := b.Gatherer().Gather()
	require.NoError(t, err)
	for _, f := range fams {
		if f.GetName() == "bbfw_last_apply_timestamp_seconds" {
			assert.Zero(t, f.GetMetric()[0].GetGauge().GetValue())
		}
	}
}
