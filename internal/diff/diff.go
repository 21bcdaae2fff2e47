// Package diff compares two rulesets and explains where they differ.
package diff

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"grimm.is/bbfw/internal/render"
	"grimm.is/bbfw/internal/ruleset"
	"grimm.is/bbfw/internal/tree"
)

const (
	notPresent = "<not present>"
	emptyRule  = "<empty>"
)

// Scope restricts a comparison to one table and optionally one chain.
type Scope struct {
	Table string
	Chain string
}

// Comparator compares rulesets with a matcher registry.
type Comparator struct {
	Matchers *ruleset.Registry
}

// NewComparator returns a comparator using reg, or the builtin matchers
// when reg is nil.
func NewComparator(reg *ruleset.Registry) *Comparator {
	if reg == nil {
		reg = ruleset.DefaultRegistry()
	}
	return &Comparator{Matchers: reg}
}

// Equal reports whether a and b are semantically equal.
func (c *Comparator) Equal(a, b *ruleset.Ruleset) bool {
	return a.Equal(b, c.Matchers)
}

// Report is the outcome of Compare: one tree per differing table.
type Report struct {
	Left   string
	Right  string
	Scope  Scope
	Tables []*tree.Node
}

// Empty reports whether no difference was found.
func (r *Report) Empty() bool { return len(r.Tables) == 0 }

// Title describes what was compared.
func (r *Report) Title() string {
	title := fmt.Sprintf("Compare %s (<) and %s (>)", r.Left, r.Right)
	switch {
	case r.Scope.Chain != "":
		title += fmt.Sprintf(", chain %s in table %s only", r.Scope.Chain, r.Scope.Table)
	case r.Scope.Table != "":
		title += fmt.Sprintf(", table %s only", r.Scope.Table)
	}
	return title
}

// Lines renders the report trees.
func (r *Report) Lines(style tree.Styler) []string {
	return tree.Render(r.Tables, style)
}

// Compare walks both rulesets and records every difference in scope.
// Left-hand content is marked with "<", right-hand content with ">".
func (c *Comparator) Compare(a, b *ruleset.Ruleset, s Scope) *Report {
	report := &Report{Left: a.Name, Right: b.Name, Scope: s}

	names := ruleset.Tables
	if s.Table != "" {
		names = []string{s.Table}
	}
	for _, name := range names {
		this, that := lookupTable(a, name), lookupTable(b, name)
		if this == nil && that == nil {
			continue
		}
		if this == nil || that == nil {
			report.Tables = append(report.Tables, tree.New(tree.KindTable, name, presence(this != nil, that != nil)...))
			continue
		}

		var node *tree.Node
		if s.Chain != "" {
			node = c.compareChainOnly(this, that, s.Chain)
		} else {
			node = c.compareTables(this, that)
		}
		if node != nil {
			report.Tables = append(report.Tables, node)
		}
	}
	return report
}

func lookupTable(rs *ruleset.Ruleset, name string) *ruleset.Table {
	if !rs.HasTable(name) {
		return nil
	}
	return rs.Table(name)
}

func lookupChain(t *ruleset.Table, name string) *ruleset.Chain {
	if !t.HasChain(name) {
		return nil
	}
	return t.Chain(name)
}

func presence(left, right bool) []*tree.Node {
	label := func(present bool) string {
		if present {
			return "present"
		}
		return notPresent
	}
	return []*tree.Node{
		tree.New(tree.KindLeft, "< "+label(left)),
		tree.New(tree.KindRight, "> "+label(right)),
	}
}

func (c *Comparator) compareChainOnly(this, that *ruleset.Table, name string) *tree.Node {
	chainNode := c.compareChains(name, lookupChain(this, name), lookupChain(that, name))
	if chainNode == nil {
		return nil
	}
	return tree.New(tree.KindTable, this.Name(), chainNode)
}

// compareTables visits builtin chains, then the user chains they reach
// through jump targets on either side.
func (c *Comparator) compareTables(this, that *ruleset.Table) *tree.Node {
	if this.Equal(that, c.Matchers) {
		return nil
	}
	node := tree.New(tree.KindTable, this.Name())

	visited := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true

		left, right := lookupChain(this, name), lookupChain(that, name)
		if chainNode := c.compareChains(name, left, right); chainNode != nil {
			node.Add(chainNode)
		}
		for _, child := range children(left, right) {
			visit(child)
		}
	}
	for _, name := range this.BuiltinChains() {
		visit(name)
	}

	if len(node.Children) == 0 {
		return nil
	}
	return node
}

func children(left, right *ruleset.Chain) []string {
	var names []string
	if left != nil {
		names = append(names, left.ChildrenNames()...)
	}
	if right != nil {
		for _, n := range right.ChildrenNames() {
			if !slices.Contains(names, n) {
				names = append(names, n)
			}
		}
	}
	return names
}

// compareChains returns nil when both chains are absent or equal.
func (c *Comparator) compareChains(name string, left, right *ruleset.Chain) *tree.Node {
	if left == nil && right == nil {
		return nil
	}
	if left == nil || right == nil {
		return tree.New(tree.KindChain, chainLabel(name, left, right), presence(left != nil, right != nil)...)
	}
	if left.Equal(right, c.Matchers) {
		return nil
	}

	node := tree.New(tree.KindChain, chainLabel(name, left, right))
	if left.Policy() != right.Policy() {
		node.Add(
			tree.Newf(tree.KindLeft, "< policy is %s", left.Policy()),
			tree.Newf(tree.KindRight, "> policy is %s", right.Policy()),
		)
	}

	lr, rr := left.Rules(), right.Rules()
	for i := range max(len(lr), len(rr)) {
		var l, r *ruleset.Rule
		if i < len(lr) {
			l = lr[i]
		}
		if i < len(rr) {
			r = rr[i]
		}
		if l != nil && r != nil && l.Equal(r, c.Matchers) {
			continue
		}
		node.Add(tree.New(tree.KindPlain, fmt.Sprintf("rule %d", i+1),
			tree.New(tree.KindLeft, "< "+ruleText(l)),
			tree.New(tree.KindRight, "> "+ruleText(r)),
		))
	}
	return node
}

func chainLabel(name string, left, right *ruleset.Chain) string {
	var refs []string
	for _, c := range []*ruleset.Chain{left, right} {
		if c == nil {
			continue
		}
		for _, r := range c.Referers() {
			if !slices.Contains(refs, r) {
				refs = append(refs, r)
			}
		}
	}
	if len(refs) == 0 {
		return name
	}
	return fmt.Sprintf("%s (used in %s)", name, strings.Join(refs, ","))
}

func ruleText(r *ruleset.Rule) string {
	if r == nil {
		return emptyRule
	}
	return r.Format(true)
}

// Unified returns a unified text diff of the iptables-restore renders of a
// and b, restricted by s.
func Unified(a, b *ruleset.Ruleset, s Scope) (string, error) {
	f := render.Filter{Table: s.Table, Chain: s.Chain}
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(body(render.Live(a, f))),
		B:        difflib.SplitLines(body(render.Live(b, f))),
		FromFile: a.Name,
		ToFile:   b.Name,
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(ud)
}

// body drops the provenance header, which always differs.
func body(out *render.LiveOutput) string {
	lines := out.Lines()
	if len(lines) > 0 {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n") + "\n"
}
