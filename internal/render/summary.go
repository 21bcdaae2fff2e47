package render

import (
	"fmt"

	"grimm.is/bbfw/internal/ruleset"
	"grimm.is/bbfw/internal/tree"
)

// Summary builds one tree per table showing how chains jump to each other.
// Builtin chains and unreferenced user chains are the roots of each table.
func Summary(rs *ruleset.Ruleset, f Filter) []*tree.Node {
	var nodes []*tree.Node
	for _, t := range f.tables(rs) {
		if t.IsEmpty() {
			nodes = append(nodes, tree.Newf(tree.KindTable, "*%s is empty", t.Name()))
			continue
		}
		node := tree.Newf(tree.KindTable, "*%s", t.Name())

		roots := t.RootChains()
		if f.Chain != "" {
			roots = f.chains(t)
		}
		for _, c := range roots {
			node.Add(chainNode(t, c, map[string]bool{}))
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func chainNode(t *ruleset.Table, c *ruleset.Chain, path map[string]bool) *tree.Node {
	label := fmt.Sprintf("%s (%d rules)", c.Name(), c.Len())
	if c.IsBuiltin() {
		label = fmt.Sprintf("%s (policy %s, %d rules)", c.Name(), c.Policy(), c.Len())
	}
	node := tree.New(tree.KindChain, label)

	path[c.Name()] = true
	defer delete(path, c.Name())

	for _, name := range c.ChildrenNames() {
		switch {
		case path[name]:
			node.Add(tree.Newf(tree.KindNote, "%s (loop)", name))
		case !t.HasChain(name):
			node.Add(tree.Newf(tree.KindNote, "%s (undefined)", name))
		default:
			node.Add(chainNode(t, t.Chain(name), path))
		}
	}
	return node
}
