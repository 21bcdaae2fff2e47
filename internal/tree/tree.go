// Package tree holds labelled trees and renders them as indented text with
// ASCII connectors.
package tree

import (
	"fmt"
	"strings"
)

// Kind tells a Styler what a node represents.
type Kind int

const (
	KindPlain Kind = iota
	KindTable
	KindChain
	KindLeft  // content only on the left-hand side of a comparison
	KindRight // content only on the right-hand side of a comparison
	KindNote
)

// Node is a label with ordered children.
type Node struct {
	Label    string
	Kind     Kind
	Children []*Node
}

// New returns a node with the given children.
func New(kind Kind, label string, children ...*Node) *Node {
	return &Node{Label: label, Kind: kind, Children: children}
}

// Newf is New with a formatted label.
func Newf(kind Kind, format string, args ...any) *Node {
	return New(kind, fmt.Sprintf(format, args...))
}

// Add appends children and returns n.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Find returns the first direct child with the given label.
func (n *Node) Find(label string) *Node {
	for _, c := range n.Children {
		if c.Label == label {
			return c
		}
	}
	return nil
}

// Walk calls fn for n and every descendant, depth first.
func (n *Node) Walk(fn func(depth int, n *Node)) {
	n.walk(0, fn)
}

func (n *Node) walk(depth int, fn func(int, *Node)) {
	fn(depth, n)
	for _, c := range n.Children {
		c.walk(depth+1, fn)
	}
}

// Styler decorates a label before it is printed.
type Styler func(kind Kind, label string) string

// Plain prints labels unchanged.
func Plain(_ Kind, label string) string { return label }

const (
	branch = "|-- "
	corner = "`-- "
	pipe   = "|   "
	blank  = "    "
)

// Render flattens roots into lines. Roots are printed flush left; their
// descendants are indented under connectors, the last sibling of each group
// drawing a corner.
func Render(roots []*Node, style Styler) []string {
	if style == nil {
		style = Plain
	}
	var lines []string
	for _, n := range roots {
		lines = append(lines, style(n.Kind, n.Label))
		lines = renderChildren(lines, n.Children, "", style)
	}
	return lines
}

func renderChildren(lines []string, children []*Node, prefix string, style Styler) []string {
	for i, c := range children {
		connector, indent := branch, pipe
		if i == len(children)-1 {
			connector, indent = corner, blank
		}
		lines = append(lines, prefix+connector+style(c.Kind, c.Label))
		lines = renderChildren(lines, c.Children, prefix+indent, style)
	}
	return lines
}

// String renders roots as newline terminated text.
func String(roots []*Node, style Styler) string {
	lines := Render(roots, style)
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
