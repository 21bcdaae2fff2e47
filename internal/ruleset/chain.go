package ruleset

import (
	"fmt"
	"slices"
)

// Chain is a named, ordered list of rules with a default policy.
//
// Parent and child chains are not stored: they are derived from rule
// targets on demand through ChildrenNames and Referers.
type Chain struct {
	name     string
	policy   string
	rules    []*Rule
	complete bool

	// owning table, nil while detached
	table *Table
}

// NewChain creates a detached chain. An empty policy selects the default:
// ACCEPT for builtin chains of table, "-" otherwise.
func NewChain(table, name, policy string) *Chain {
	c := &Chain{name: name}
	c.policy = defaultPolicy(table, name, policy)
	return c
}

func defaultPolicy(table, name, policy string) string {
	if policy != "" {
		return policy
	}
	if IsBuiltinChain(table, name) {
		return DefaultPolicy
	}
	return UnsetPolicy
}

// Name returns the chain name.
func (c *Chain) Name() string { return c.name }

// Policy returns the chain policy ("-" for user chains).
func (c *Chain) Policy() string { return c.policy }

// SetPolicy changes the policy. Empty values are ignored.
func (c *Chain) SetPolicy(policy string) {
	if policy != "" {
		c.policy = policy
	}
}

// Table returns the owning table, or nil.
func (c *Chain) Table() *Table { return c.table }

// IsBuiltin reports whether the chain is one of its table's default chains.
func (c *Chain) IsBuiltin() bool {
	if c.table == nil {
		return false
	}
	return IsBuiltinChain(c.table.name, c.name)
}

// Complete reports whether assembly of the chain has finished.
func (c *Chain) Complete() bool { return c.complete }

// MarkComplete records that assembly of the chain has finished.
func (c *Chain) MarkComplete() { c.complete = true }

// Rules returns the chain's rules in order. The slice must not be modified.
func (c *Chain) Rules() []*Rule { return c.rules }

// Len returns the number of rules.
func (c *Chain) Len() int { return len(c.rules) }

// Rule returns the rule at index i, or nil when out of range.
func (c *Chain) Rule(i int) *Rule {
	if i < 0 || i >= len(c.rules) {
		return nil
	}
	return c.rules[i]
}

// Append adds a rule at the end of the chain.
func (c *Chain) Append(r *Rule) {
	if r == nil {
		return
	}
	c.rules = append(c.rules, r)
	c.changed()
}

// RemoveRule deletes the rule at index i.
func (c *Chain) RemoveRule(i int) error {
	if i < 0 || i >= len(c.rules) {
		return fmt.Errorf("chain %s: rule index %d out of range", c.name, i)
	}
	c.rules = append(c.rules[:i], c.rules[i+1:]...)
	c.changed()
	return nil
}

// Purge discards every rule. The chain itself survives.
func (c *Chain) Purge() {
	c.rules = nil
	c.changed()
}

func (c *Chain) changed() {
	if c.table != nil {
		c.table.invalidateRefs()
	}
}

// ChildrenNames returns, in first-seen order, the targets of this chain's
// rules that are neither standard, extended nor table specific, i.e. the
// user chains it jumps to.
func (c *Chain) ChildrenNames() []string {
	tableName := ""
	if c.table != nil {
		tableName = c.table.name
	}

	var names []string
	seen := make(map[string]bool)
	for _, r := range c.rules {
		target := r.Target()
		if !isChainTarget(tableName, c.name, target) || seen[target] {
			continue
		}
		seen[target] = true
		names = append(names, target)
	}
	return names
}

// Referers returns the names of chains in the owning table whose rules
// jump to this chain.
func (c *Chain) Referers() []string {
	if c.table == nil {
		return nil
	}
	return c.table.referers(c.name)
}

// RulesByTarget returns the indexes of rules whose target is target.
func (c *Chain) RulesByTarget(target string) []int {
	var idx []int
	for i, r := range c.rules {
		if r.Target() == target {
			idx = append(idx, i)
		}
	}
	return idx
}

// Equal reports whether both chains have the same policy and pairwise equal
// rules in the same order.
func (c *Chain) Equal(other *Chain, reg *Registry) bool {
	if other == nil {
		return false
	}
	if c.policy != other.policy || len(c.rules) != len(other.rules) {
		return false
	}
	for i, r := range c.rules {
		if !r.Equal(other.rules[i], reg) {
			return false
		}
	}
	return true
}

// Clone returns a detached deep copy of the chain.
func (c *Chain) Clone() *Chain {
	out := &Chain{name: c.name, policy: c.policy, complete: c.complete}
	out.rules = make([]*Rule, len(c.rules))
	for i, r := range c.rules {
		out.rules[i] = NewRule(r.props...)
	}
	return out
}

func (c *Chain) String() string {
	return fmt.Sprintf("chain %s (policy %s, %d rules)", c.name, c.policy, len(c.rules))
}

// isChainTarget reports whether target names a user chain in the given
// table/chain context.
func isChainTarget(table, chain, target string) bool {
	if target == "" || IsStandardTarget(target) {
		return false
	}
	return !slices.Contains(chainTargets(table, chain), target)
}
