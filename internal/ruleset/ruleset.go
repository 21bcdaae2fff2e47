// Package ruleset models iptables policy: rulesets made of tables, tables
// made of chains, chains made of rules, and the matchers used to decide
// whether two rules mean the same thing.
//
// Equality is semantic. Rules are compared property by property with a
// Registry of matchers that normalize aliases (--set-mark and --set-xmark,
// bare addresses and /32 networks, symbolic and numeric ICMP types), and
// chain relationships are derived from jump targets rather than stored.
package ruleset

import (
	"fmt"

	"grimm.is/bbfw/internal/logging"
)

// Severity ranks validation issues.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	default:
		return "warning"
	}
}

// Issue is a problem found by Validate.
type Issue struct {
	Severity Severity
	Table    string
	Chain    string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s/%s: %s", i.Severity, i.Table, i.Chain, i.Message)
}

// Ruleset is a named snapshot of every table, e.g. the live configuration
// or the one loaded from a directory.
type Ruleset struct {
	Name   string
	tables map[string]*Table
}

// New creates an empty ruleset.
func New(name string) *Ruleset {
	return &Ruleset{Name: name, tables: make(map[string]*Table)}
}

// AddTable stores t, replacing any table with the same name.
func (rs *Ruleset) AddTable(t *Table) {
	if t != nil {
		rs.tables[t.name] = t
	}
}

// Table returns the named table, or nil. Misses are logged at debug.
func (rs *Ruleset) Table(name string) *Table {
	t, ok := rs.tables[name]
	if !ok {
		logging.WithComponent("ruleset").Debug("table not found", "ruleset", rs.Name, "table", name)
		return nil
	}
	return t
}

// HasTable reports whether the ruleset holds the named table.
func (rs *Ruleset) HasTable(name string) bool {
	_, ok := rs.tables[name]
	return ok
}

// EnsureTable returns the named table, creating it if needed.
func (rs *Ruleset) EnsureTable(name string) (*Table, error) {
	if t, ok := rs.tables[name]; ok {
		return t, nil
	}
	t, err := NewTable(name)
	if err != nil {
		return nil, err
	}
	rs.tables[name] = t
	return t, nil
}

// RemoveTable deletes the named table.
func (rs *Ruleset) RemoveTable(name string) {
	delete(rs.tables, name)
}

// Tables returns the tables in the fixed iptables order.
func (rs *Ruleset) Tables() []*Table {
	var out []*Table
	for _, name := range Tables {
		if t, ok := rs.tables[name]; ok {
			out = append(out, t)
		}
	}
	return out
}

// TableNames returns the names of Tables().
func (rs *Ruleset) TableNames() []string {
	var names []string
	for _, t := range rs.Tables() {
		names = append(names, t.name)
	}
	return names
}

// Len returns the number of tables.
func (rs *Ruleset) Len() int {
	return len(rs.tables)
}

// Equal reports whether both rulesets hold the same tables and every pair
// of tables is equal.
func (rs *Ruleset) Equal(other *Ruleset, reg *Registry) bool {
	if other == nil || len(rs.tables) != len(other.tables) {
		return false
	}
	for name, t := range rs.tables {
		o, ok := other.tables[name]
		if !ok || !t.Equal(o, reg) {
			return false
		}
	}
	return true
}

// Validate reports every jump to a chain that does not exist in its table.
func (rs *Ruleset) Validate() []Issue {
	log := logging.WithComponent("ruleset")

	var issues []Issue
	for _, t := range rs.Tables() {
		for _, c := range t.Chains() {
			for _, child := range c.ChildrenNames() {
				if t.HasChain(child) {
					continue
				}
				issue := Issue{
					Severity: SeverityCritical,
					Table:    t.name,
					Chain:    c.name,
					Message:  fmt.Sprintf("jump to undefined chain %s", child),
				}
				log.Error("dangling chain reference", "severity", issue.Severity.String(),
					"table", t.name, "chain", c.name, "target", child)
				issues = append(issues, issue)
			}
		}
	}
	return issues
}

// Clone returns a deep copy with a new name.
func (rs *Ruleset) Clone(name string) *Ruleset {
	out := New(name)
	for n, t := range rs.tables {
		out.tables[n] = t.Clone()
	}
	return out
}

// Merge returns a copy of base with every chain of overlay installed on top
// of it. Chains equal to the existing ones are kept, differing chains are
// replaced whole. With wipe set the result is a copy of overlay alone.
func Merge(base, overlay *Ruleset, wipe bool, reg *Registry) (*Ruleset, error) {
	if wipe {
		return overlay.Clone(overlay.Name), nil
	}
	out := base.Clone(overlay.Name)
	for _, t := range overlay.Tables() {
		dst, err := out.EnsureTable(t.name)
		if err != nil {
			return nil, err
		}
		for _, c := range t.Chains() {
			if _, err := dst.MergeChain(c.Clone(), reg); err != nil {
				return nil, fmt.Errorf("merge %s/%s: %w", t.name, c.name, err)
			}
		}
	}
	return out, nil
}

// Stats summarizes the size of a ruleset.
type Stats struct {
	Tables int
	Chains int
	Rules  int
}

// Stats counts tables, chains and rules.
func (rs *Ruleset) Stats() Stats {
	var s Stats
	for _, t := range rs.tables {
		s.Tables++
		for _, c := range t.chains {
			s.Chains++
			s.Rules += len(c.rules)
		}
	}
	return s
}
