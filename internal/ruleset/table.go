package ruleset

import (
	"errors"
	"fmt"
	"slices"

	"grimm.is/bbfw/internal/logging"
)

// ErrDuplicateChain is returned when a chain name is already used in a table.
var ErrDuplicateChain = errors.New("duplicate chain")

// ErrUnknownTable is returned for table names outside the fixed set.
var ErrUnknownTable = errors.New("unknown table")

// Table is an iptables table: an ordered set of uniquely named chains.
type Table struct {
	name   string
	chains []*Chain

	// child chain name -> chains jumping to it, rebuilt on demand
	refs      map[string][]string
	refsValid bool
}

// NewTable creates a table holding its builtin chains at the default policy.
func NewTable(name string) (*Table, error) {
	if !IsKnownTable(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	t := &Table{name: name}
	for _, chain := range builtinChains[name] {
		c := NewChain(name, chain, "")
		c.table = t
		t.chains = append(t.chains, c)
	}
	return t, nil
}

// MustTable is NewTable for names known to be valid.
func MustTable(name string) *Table {
	t, err := NewTable(name)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// BuiltinChains returns the fixed chain names of the table.
func (t *Table) BuiltinChains() []string {
	return BuiltinChainNames(t.name)
}

// CanContainCustomChains reports whether user-defined chains are allowed.
func (t *Table) CanContainCustomChains() bool {
	return customChains[t.name]
}

// CanContainChain reports whether a chain called name may live in the table.
func (t *Table) CanContainChain(name string) bool {
	return IsBuiltinChain(t.name, name) || t.CanContainCustomChains()
}

// IsTargetValid reports whether target may be used by rules of chain.
// Rules without a target only match and are always valid. In the filter and
// security tables any other target is accepted as a reference to a user
// chain that may not have been declared yet.
func (t *Table) IsTargetValid(target, chain string) bool {
	if target == "" {
		return true
	}
	if IsStandardTarget(target) || slices.Contains(chainTargets(t.name, chain), target) {
		return true
	}
	return t.CanContainCustomChains()
}

// IsUserTarget reports whether target is valid for chain and names a user
// chain rather than a builtin target.
func (t *Table) IsUserTarget(target, chain string) bool {
	return t.IsTargetValid(target, chain) && isChainTarget(t.name, chain, target)
}

// Chain returns the chain called name, or nil. Misses are logged at debug.
func (t *Table) Chain(name string) *Chain {
	for _, c := range t.chains {
		if c.name == name {
			return c
		}
	}
	logging.WithComponent("ruleset").Debug("chain not found", "table", t.name, "chain", name)
	return nil
}

// HasChain reports whether the table holds a chain called name.
func (t *Table) HasChain(name string) bool {
	return t.index(name) >= 0
}

func (t *Table) index(name string) int {
	for i, c := range t.chains {
		if c.name == name {
			return i
		}
	}
	return -1
}

// Chains returns every chain: builtin chains in their fixed order followed by
// user chains in insertion order.
func (t *Table) Chains() []*Chain {
	out := make([]*Chain, 0, len(t.chains))
	for _, name := range builtinChains[t.name] {
		if i := t.index(name); i >= 0 {
			out = append(out, t.chains[i])
		}
	}
	for _, c := range t.chains {
		if !IsBuiltinChain(t.name, c.name) {
			out = append(out, c)
		}
	}
	return out
}

// UserChains returns the user-defined chains in insertion order.
func (t *Table) UserChains() []*Chain {
	var out []*Chain
	for _, c := range t.chains {
		if !IsBuiltinChain(t.name, c.name) {
			out = append(out, c)
		}
	}
	return out
}

// ChainNames returns the names of Chains().
func (t *Table) ChainNames() []string {
	chains := t.Chains()
	names := make([]string, len(chains))
	for i, c := range chains {
		names[i] = c.name
	}
	return names
}

// AppendChain adds c to the table. It fails if the name is already used or
// the table cannot hold the chain.
func (t *Table) AppendChain(c *Chain) error {
	if t.HasChain(c.name) {
		return fmt.Errorf("%w: %s in table %s", ErrDuplicateChain, c.name, t.name)
	}
	if !t.CanContainChain(c.name) {
		return fmt.Errorf("table %s cannot contain chain %s", t.name, c.name)
	}
	c.table = t
	t.chains = append(t.chains, c)
	t.invalidateRefs()
	return nil
}

// ReplaceChain swaps any chain with the same name for c. The old chain is
// removed before c is added, so no partially updated chain is observable.
func (t *Table) ReplaceChain(c *Chain) error {
	t.RemoveChain(c.name)
	return t.AppendChain(c)
}

// MergeChain installs c unless the chain with the same name already
// satisfies it (c.Equal(existing)). It reports whether the table changed.
func (t *Table) MergeChain(c *Chain, reg *Registry) (bool, error) {
	if i := t.index(c.name); i >= 0 && c.Equal(t.chains[i], reg) {
		t.chains[i].MarkComplete()
		return false, nil
	}
	if err := t.ReplaceChain(c); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveChain deletes the chain called name and reports whether it existed.
func (t *Table) RemoveChain(name string) bool {
	i := t.index(name)
	if i < 0 {
		return false
	}
	t.chains[i].table = nil
	t.chains = append(t.chains[:i], t.chains[i+1:]...)
	t.invalidateRefs()
	return true
}

// IsEmpty reports whether the table holds exactly its builtin chains, all at
// the default policy and without rules.
func (t *Table) IsEmpty() bool {
	builtins := builtinChains[t.name]
	if len(t.chains) != len(builtins) {
		return false
	}
	for _, c := range t.chains {
		if !IsBuiltinChain(t.name, c.name) || c.policy != DefaultPolicy || len(c.rules) > 0 {
			return false
		}
	}
	return true
}

// RootChains returns the builtin chains and the user chains nothing jumps
// to, the entry points of the chain graph.
func (t *Table) RootChains() []*Chain {
	var out []*Chain
	for _, c := range t.Chains() {
		if IsBuiltinChain(t.name, c.name) || len(t.referers(c.name)) == 0 {
			out = append(out, c)
		}
	}
	return out
}

// Equal reports whether both tables have the same name and equal builtin
// chains. User chains are compared when they are reachable from a builtin
// chain through jump targets; unreferenced user chains are ignored.
func (t *Table) Equal(other *Table, reg *Registry) bool {
	if other == nil || t.name != other.name {
		return false
	}
	visited := make(map[string]bool)
	for _, name := range builtinChains[t.name] {
		if !t.chainsEqual(other, name, reg, visited) {
			return false
		}
	}
	return true
}

func (t *Table) chainsEqual(other *Table, name string, reg *Registry, visited map[string]bool) bool {
	if visited[name] {
		return true
	}
	visited[name] = true

	this, that := t.lookup(name), other.lookup(name)
	if this == nil || that == nil {
		return this == nil && that == nil
	}
	if !this.Equal(that, reg) {
		return false
	}
	for _, child := range this.ChildrenNames() {
		if !t.chainsEqual(other, child, reg, visited) {
			return false
		}
	}
	return true
}

// lookup is Chain without the miss logging.
func (t *Table) lookup(name string) *Chain {
	if i := t.index(name); i >= 0 {
		return t.chains[i]
	}
	return nil
}

// Purge empties the chain called name. With recursive set, chains it jumps
// to are purged first. User chains are deleted together with every rule
// that jumps to them; builtin chains keep their policy. It returns the
// names of the chains touched, children first.
func (t *Table) Purge(name string, recursive bool) ([]string, error) {
	if t.lookup(name) == nil {
		return nil, fmt.Errorf("chain %s not found in table %s", name, t.name)
	}

	var order []string
	visited := make(map[string]bool)
	var walk func(string)
	walk = func(n string) {
		if visited[n] {
			return
		}
		visited[n] = true
		c := t.lookup(n)
		if c == nil {
			return
		}
		if recursive {
			for _, child := range c.ChildrenNames() {
				walk(child)
			}
		}
		order = append(order, n)
	}
	walk(name)

	for _, n := range order {
		c := t.lookup(n)
		if c == nil {
			continue
		}
		c.Purge()
		if IsBuiltinChain(t.name, n) {
			continue
		}
		for _, ref := range t.referers(n) {
			refChain := t.lookup(ref)
			idx := refChain.RulesByTarget(n)
			for i := len(idx) - 1; i >= 0; i-- {
				if err := refChain.RemoveRule(idx[i]); err != nil {
					return order, err
				}
			}
		}
		t.RemoveChain(n)
	}
	return order, nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{name: t.name}
	for _, c := range t.chains {
		cc := c.Clone()
		cc.table = out
		out.chains = append(out.chains, cc)
	}
	return out
}

func (t *Table) invalidateRefs() {
	t.refsValid = false
}

func (t *Table) referers(name string) []string {
	if !t.refsValid {
		t.rebuildRefs()
	}
	refs := t.refs[name]
	out := make([]string, len(refs))
	copy(out, refs)
	return out
}

func (t *Table) rebuildRefs() {
	t.refs = make(map[string][]string)
	for _, c := range t.Chains() {
		for _, child := range c.ChildrenNames() {
			if !slices.Contains(t.refs[child], c.name) {
				t.refs[child] = append(t.refs[child], c.name)
			}
		}
	}
	t.refsValid = true
}

func (t *Table) String() string {
	return "table " + t.name
}
