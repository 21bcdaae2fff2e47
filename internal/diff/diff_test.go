package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/bbfw/internal/parser"
	"grimm.is/bbfw/internal/ruleset"
)

func mustParse(t *testing.T, name string, lines ...string) *ruleset.Ruleset {
	t.Helper()
	rs, err := parser.ParseSaveLines(lines, parser.WithName(name))
	require.NoError(t, err)
	return rs
}

func logdrop(t *testing.T, name string, extra ...string) *ruleset.Ruleset {
	lines := []string{
		"*nat",
		"-A POSTROUTING -o eth0 -j MASQUERADE",
		"COMMIT",
		"*filter",
		":INPUT ACCEPT [0:0]",
		":LOGDROP - [0:0]",
		"-A INPUT -p tcp --dport 22 -j ACCEPT",
		"-A INPUT -j LOGDROP",
		"-A LOGDROP -j LOG",
		"-A LOGDROP -j DROP",
	}
	lines = append(lines, extra...)
	lines = append(lines, "COMMIT")
	return mustParse(t, name, lines...)
}

func TestCompareIdentical(t *testing.T) {
	c := NewComparator(nil)
	a, b := logdrop(t, "live"), logdrop(t, "config")

	assert.True(t, c.Equal(a, b))
	report := c.Compare(a, b, Scope{})
	assert.True(t, report.Empty())
	assert.Empty(t, report.Lines(nil))
	assert.Equal(t, "Compare live (<) and config (>)", report.Title())
}

func TestComparePolicyOnly(t *testing.T) {
	c := NewComparator(nil)
	a, b := logdrop(t, "live"), logdrop(t, "config")
	b.Table("filter").Chain("INPUT").SetPolicy("DROP")

	require.False(t, c.Equal(a, b))
	want := []string{
		"filter",
		"`-- INPUT",
		"    |-- < policy is ACCEPT",
		"    `-- > policy is DROP",
	}
	assert.Equal(t, want, c.Compare(a, b, Scope{}).Lines(nil))
}

func TestCompareRuleCountsDiffer(t *testing.T) {
	c := NewComparator(nil)
	a := logdrop(t, "live")
	b := logdrop(t, "config")
	require.NoError(t, b.Table("filter").Chain("LOGDROP").RemoveRule(0))

	want := []string{
		"filter",
		"`-- LOGDROP (used in INPUT)",
		"    |-- rule 1",
		"    |   |-- < -j LOG",
		"    |   `-- > -j DROP",
		"    `-- rule 2",
		"        |-- < -j DROP",
		"        `-- > <empty>",
	}
	assert.Equal(t, want, c.Compare(a, b, Scope{}).Lines(nil))
}

func TestCompareIsPositional(t *testing.T) {
	c := NewComparator(nil)
	a := mustParse(t, "a", "*filter", "-A INPUT -s 10.0.0.1 -j ACCEPT", "-A INPUT -s 10.0.0.2 -j DROP", "COMMIT")
	b := mustParse(t, "b", "*filter", "-A INPUT -s 10.0.0.2 -j DROP", "-A INPUT -s 10.0.0.1 -j ACCEPT", "COMMIT")

	lines := c.Compare(a, b, Scope{}).Lines(nil)
	assert.Contains(t, lines, "    |-- rule 1")
	assert.Contains(t, lines, "    `-- rule 2")
	assert.Contains(t, lines, "        |-- < -s 10.0.0.2 -j DROP")
}

func TestCompareMissingTable(t *testing.T) {
	c := NewComparator(nil)
	a := logdrop(t, "live")
	b := mustParse(t, "config", "*filter",
		"-A INPUT -p tcp --dport 22 -j ACCEPT", "-A INPUT -j LOGDROP",
		"-A LOGDROP -j LOG", "-A LOGDROP -j DROP", "COMMIT")

	want := []string{
		"nat",
		"|-- < present",
		"`-- > <not present>",
	}
	assert.Equal(t, want, c.Compare(a, b, Scope{}).Lines(nil))
}

func TestCompareNewUserChain(t *testing.T) {
	c := NewComparator(nil)
	a := mustParse(t, "live", "*filter", "-A INPUT -j ACCEPT", "COMMIT")
	b := mustParse(t, "config", "*filter", "-A INPUT -j ACCEPT", "-A INPUT -j AUDIT", "-A AUDIT -j LOG", "COMMIT")

	want := []string{
		"filter",
		"|-- INPUT",
		"|   `-- rule 2",
		"|       |-- < <empty>",
		"|       `-- > -j AUDIT",
		"`-- AUDIT (used in INPUT)",
		"    |-- < <not present>",
		"    `-- > present",
	}
	assert.Equal(t, want, c.Compare(a, b, Scope{}).Lines(nil))
}

func TestCompareScope(t *testing.T) {
	c := NewComparator(nil)
	a, b := logdrop(t, "live"), logdrop(t, "config")
	b.Table("filter").Chain("INPUT").SetPolicy("DROP")
	b.Table("nat").Chain("POSTROUTING").SetPolicy("DROP")

	report := c.Compare(a, b, Scope{Table: "nat"})
	assert.Equal(t, "Compare live (<) and config (>), table nat only", report.Title())
	require.Len(t, report.Tables, 1)
	assert.Equal(t, "nat", report.Tables[0].Label)

	report = c.Compare(a, b, Scope{Table: "filter", Chain: "LOGDROP"})
	assert.True(t, report.Empty())

	report = c.Compare(a, b, Scope{Table: "filter", Chain: "INPUT"})
	require.Len(t, report.Tables, 1)
	assert.NotNil(t, report.Tables[0].Find("INPUT"))

	report = c.Compare(a, b, Scope{Table: "filter", Chain: "NOPE"})
	assert.True(t, report.Empty())
}

// A declared minimal rule matches a live rule carrying extra matches, but
// not the other way round.
func TestCompareIsAsymmetric(t *testing.T) {
	c := NewComparator(nil)
	minimal := mustParse(t, "config", "*filter", "-A INPUT -p tcp --dport 22 -j ACCEPT", "COMMIT")
	decorated := mustParse(t, "live", "*filter", "-A INPUT -p tcp -m tcp --dport 22 -j ACCEPT", "COMMIT")

	assert.True(t, c.Compare(minimal, decorated, Scope{}).Empty())
	assert.False(t, c.Compare(decorated, minimal, Scope{}).Empty())
}

func TestCustomMatchers(t *testing.T) {
	a := mustParse(t, "a", "*filter", "-A INPUT -j LOG --log-prefix fw", "COMMIT")
	b := mustParse(t, "b", "*filter", `-A INPUT -j LOG --log-prefix "fw"`, "COMMIT")

	assert.False(t, NewComparator(nil).Equal(a, b))
	reg := ruleset.NewRegistry(ruleset.NamedMatcher{Name: "--log-prefix", Matcher: ruleset.QuotedMatcher})
	assert.True(t, NewComparator(reg).Equal(a, b))
}

func TestUnified(t *testing.T) {
	a, b := logdrop(t, "live"), logdrop(t, "config")
	b.Table("filter").Chain("INPUT").SetPolicy("DROP")

	text, err := Unified(a, b, Scope{Table: "filter"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "--- live\n+++ config\n"))
	assert.Contains(t, text, "-:INPUT ACCEPT [0:0]\n")
	assert.Contains(t, text, "+:INPUT DROP [0:0]\n")
	assert.NotContains(t, text, "POSTROUTING")

	text, err = Unified(a, a, Scope{})
	require.NoError(t, err)
	assert.Empty(t, text)
}
