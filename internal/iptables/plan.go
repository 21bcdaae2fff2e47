package iptables

import (
	"context"
	"fmt"

	"grimm.is/bbfw/internal/diff"
	"grimm.is/bbfw/internal/ruleset"
)

// Plan is a pending change to the live ruleset.
type Plan struct {
	Live   *ruleset.Ruleset
	Target *ruleset.Ruleset
	Report *diff.Report

	// Chains removed or flushed by a purge, children first.
	Purged []string
}

// Empty reports whether applying the plan would change nothing.
func (p *Plan) Empty() bool { return p.Report.Empty() }

// Changes returns the tables of Target that differ from Live.
func (p *Plan) Changes() *ruleset.Ruleset {
	out := ruleset.New(p.Target.Name)
	for _, node := range p.Report.Tables {
		if t := p.Target.Table(node.Label); t != nil {
			out.AddTable(t)
		}
	}
	return out
}

// plan compares target against live. The target is the left-hand side, so
// a declared rule matches a live rule the kernel decorated with extra
// matches.
func (m *Manager) plan(live, target *ruleset.Ruleset) *Plan {
	return &Plan{
		Live:   live,
		Target: target,
		Report: m.comparator.Compare(target, live, diff.Scope{}),
	}
}

// PlanLoad computes the ruleset that results from installing desired over
// the live one. With wipe set, tables and chains not in desired are
// emptied.
func (m *Manager) PlanLoad(ctx context.Context, desired *ruleset.Ruleset, wipe bool) (*Plan, error) {
	live, err := m.Save(ctx)
	if err != nil {
		return nil, err
	}
	return m.PlanLoadFrom(live, desired, wipe)
}

// PlanLoadFrom is PlanLoad against an already read live ruleset.
func (m *Manager) PlanLoadFrom(live, desired *ruleset.Ruleset, wipe bool) (*Plan, error) {
	target, err := ruleset.Merge(live, desired, wipe, m.comparator.Matchers)
	if err != nil {
		return nil, err
	}
	if wipe {
		for _, name := range live.TableNames() {
			if _, err := target.EnsureTable(name); err != nil {
				return nil, err
			}
		}
	}
	return m.plan(live, target), nil
}

// PlanPurge computes the live ruleset with chain purged from table.
func (m *Manager) PlanPurge(ctx context.Context, table, chain string, recursive bool) (*Plan, error) {
	live, err := m.Save(ctx)
	if err != nil {
		return nil, err
	}

	target := live.Clone(live.Name)
	t := target.Table(table)
	if t == nil {
		return nil, fmt.Errorf("table %s not found in live rules", table)
	}
	purged, err := t.Purge(chain, recursive)
	if err != nil {
		return nil, err
	}

	p := m.plan(live, target)
	p.Purged = purged
	return p, nil
}

// Apply restores the tables the plan changes.
func (m *Manager) Apply(ctx context.Context, p *Plan) error {
	if p.Empty() {
		return nil
	}
	return m.Restore(ctx, p.Changes())
}
