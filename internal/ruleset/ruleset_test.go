package ruleset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRulesetTablesOrder(t *testing.T) {
	rs := New("live")
	for _, name := range []string{"raw", "filter", "mangle"} {
		_, err := rs.EnsureTable(name)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"mangle", "filter", "raw"}, rs.TableNames())
	assert.Equal(t, 3, rs.Len())

	_, err := rs.EnsureTable("bogus")
	assert.ErrorIs(t, err, ErrUnknownTable)

	assert.Nil(t, rs.Table("nat"))
	rs.RemoveTable("raw")
	assert.False(t, rs.HasTable("raw"))
}

func TestRulesetEqual(t *testing.T) {
	reg := DefaultRegistry()
	a, b := New("a"), New("b")
	a.AddTable(buildFilter(t))
	b.AddTable(buildFilter(t))
	assert.True(t, a.Equal(b, reg))

	b.AddTable(MustTable("nat"))
	assert.False(t, a.Equal(b, reg))
}

func TestRulesetValidate(t *testing.T) {
	rs := New("cfg")
	rs.AddTable(buildFilter(t))
	assert.Empty(t, rs.Validate())

	rs.Table("filter").Chain("FORWARD").Append(ParseRule("-j MISSING"))
	issues := rs.Validate()
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityCritical, issues[0].Severity)
	assert.Equal(t, "filter", issues[0].Table)
	assert.Equal(t, "FORWARD", issues[0].Chain)
	assert.Contains(t, issues[0].Message, "MISSING")
	assert.Equal(t, "critical", issues[0].Severity.String())
}

func TestMerge(t *testing.T) {
	reg := DefaultRegistry()

	live := New("live")
	live.AddTable(buildFilter(t))
	nat := MustTable("nat")
	nat.Chain("POSTROUTING").Append(ParseRule("-o eth0 -j MASQUERADE"))
	live.AddTable(nat)

	cfg := New("config")
	filter := MustTable("filter")
	filter.Chain("INPUT").SetPolicy("DROP")
	cfg.AddTable(filter)

	merged, err := Merge(live, cfg, false, reg)
	require.NoError(t, err)
	assert.Equal(t, "DROP", merged.Table("filter").Chain("INPUT").Policy())
	assert.Zero(t, merged.Table("filter").Chain("INPUT").Len())
	assert.True(t, merged.Table("filter").HasChain("LOGDROP"), "chains missing from the overlay survive")
	assert.Equal(t, 1, merged.Table("nat").Chain("POSTROUTING").Len())

	// The inputs are untouched.
	assert.Equal(t, DefaultPolicy, live.Table("filter").Chain("INPUT").Policy())

	wiped, err := Merge(live, cfg, true, reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"filter"}, wiped.TableNames())
	assert.False(t, wiped.Table("filter").HasChain("LOGDROP"))
}

func TestRulesetStats(t *testing.T) {
	rs := New("x")
	rs.AddTable(buildFilter(t))
	rs.AddTable(MustTable("raw"))

	assert.Equal(t, Stats{Tables: 2, Chains: 6, Rules: 4}, rs.Stats())
}
