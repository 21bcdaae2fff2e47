// Package render turns rulesets into text: the iptables-restore dump, the
// configuration directory layout, a chain tree summary and a YAML dump.
package render

import (
	"fmt"
	"strings"

	"grimm.is/bbfw/internal/brand"
	"grimm.is/bbfw/internal/ruleset"
)

// Filter narrows rendering to one table and optionally one chain.
// Zero values select everything.
type Filter struct {
	Table string
	Chain string
}

func (f Filter) tables(rs *ruleset.Ruleset) []*ruleset.Table {
	if f.Table == "" {
		return rs.Tables()
	}
	if !rs.HasTable(f.Table) {
		return nil
	}
	return []*ruleset.Table{rs.Table(f.Table)}
}

func (f Filter) chains(t *ruleset.Table) []*ruleset.Chain {
	if f.Chain == "" {
		return t.Chains()
	}
	if !t.HasChain(f.Chain) {
		return nil
	}
	return []*ruleset.Chain{t.Chain(f.Chain)}
}

// Placeholders used when a line cannot be mapped back to the ruleset.
const (
	UnknownTable = "<can't determine table>"
	UnknownChain = "<can't determine chain>"
	UnknownRule  = "<can't determine rule>"
)

// Location identifies where a rendered line came from. Index is the rule
// position within Chain, or -1 when the line is not a rule.
type Location struct {
	Table string
	Chain string
	Index int
	Rule  string
}

func unknownLocation() Location {
	return Location{Table: UnknownTable, Chain: UnknownChain, Index: -1, Rule: UnknownRule}
}

// IsRule reports whether the location points at a rule.
func (l Location) IsRule() bool { return l.Index >= 0 }

func (l Location) String() string {
	if !l.IsRule() {
		return fmt.Sprintf("table %s, chain %s", l.Table, l.Chain)
	}
	return fmt.Sprintf("table %s, chain %s, rule %d: %s", l.Table, l.Chain, l.Index+1, l.Rule)
}

// LiveOutput is a rendered iptables-restore document that remembers the
// origin of each line.
type LiveOutput struct {
	lines []string
	locs  []Location
}

func (o *LiveOutput) add(line string, loc Location) {
	o.lines = append(o.lines, line)
	o.locs = append(o.locs, loc)
}

// Lines returns the rendered lines without terminators.
func (o *LiveOutput) Lines() []string { return o.lines }

// String returns the document, newline terminated.
func (o *LiveOutput) String() string {
	if len(o.lines) == 0 {
		return ""
	}
	return strings.Join(o.lines, "\n") + "\n"
}

// Locate maps a 1-based line number to its origin. Lines outside the
// document resolve to the unknown placeholders.
func (o *LiveOutput) Locate(line int) Location {
	if line < 1 || line > len(o.locs) {
		return unknownLocation()
	}
	return o.locs[line-1]
}

// Live renders rs in the iptables-save grammar. With a chain filter only
// that chain's policy and rules are written.
func Live(rs *ruleset.Ruleset, f Filter) *LiveOutput {
	out := &LiveOutput{}
	none := unknownLocation()

	out.add(fmt.Sprintf("# Generated by %s %s from %s", brand.LowerName, brand.Version, rs.Name), none)
	for _, t := range f.tables(rs) {
		tableLoc := Location{Table: t.Name(), Chain: UnknownChain, Index: -1, Rule: UnknownRule}
		chains := f.chains(t)

		out.add("# Table "+t.Name(), tableLoc)
		out.add("*"+t.Name(), tableLoc)
		for _, c := range chains {
			loc := Location{Table: t.Name(), Chain: c.Name(), Index: -1, Rule: UnknownRule}
			out.add(fmt.Sprintf(":%s %s [0:0]", c.Name(), c.Policy()), loc)
		}
		for _, c := range chains {
			for i, r := range c.Rules() {
				text := r.Format(true)
				loc := Location{Table: t.Name(), Chain: c.Name(), Index: i, Rule: text}
				out.add(strings.TrimRight(fmt.Sprintf("%s %s %s", ruleset.AppendFlag, c.Name(), text), " "), loc)
			}
		}
		out.add("COMMIT", tableLoc)
		out.add("# End of table "+t.Name(), tableLoc)
	}
	out.add("# Completed", none)
	return out
}
