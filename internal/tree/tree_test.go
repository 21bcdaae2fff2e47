package tree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	root := New(KindTable, "filter",
		New(KindChain, "INPUT",
			New(KindLeft, "< policy is ACCEPT"),
			New(KindRight, "> policy is DROP"),
		),
		New(KindChain, "LOGDROP (used in INPUT)",
			New(KindPlain, "[0]",
				New(KindLeft, "< -j LOG"),
			),
		),
	)

	want := []string{
		"filter",
		"|-- INPUT",
		"|   |-- < policy is ACCEPT",
		"|   `-- > policy is DROP",
		"`-- LOGDROP (used in INPUT)",
		"    `-- [0]",
		"        `-- < -j LOG",
	}
	assert.Equal(t, want, Render([]*Node{root}, nil))
}

func TestRenderStyler(t *testing.T) {
	roots := []*Node{New(KindTable, "nat"), New(KindTable, "raw", New(KindNote, "empty"))}
	upper := func(k Kind, label string) string {
		if k == KindNote {
			return strings.ToUpper(label)
		}
		return label
	}
	assert.Equal(t, "nat\nraw\n`-- EMPTY\n", String(roots, upper))
	assert.Equal(t, "", String(nil, nil))
}

func TestNodeHelpers(t *testing.T) {
	n := New(KindTable, "filter").Add(Newf(KindChain, "%s (%d rules)", "INPUT", 2))
	assert.NotNil(t, n.Find("INPUT (2 rules)"))
	assert.Nil(t, n.Find("OUTPUT"))

	var labels []string
	n.Walk(func(depth int, c *Node) {
		labels = append(labels, strings.Repeat(">", depth)+c.Label)
	})
	assert.Equal(t, []string{"filter", ">INPUT (2 rules)"}, labels)
}
