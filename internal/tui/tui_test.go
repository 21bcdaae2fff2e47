package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/bbfw/internal/tree"
)

func TestTreeStylerPlain(t *testing.T) {
	style := TreeStyler(false)
	for _, kind := range []tree.Kind{tree.KindPlain, tree.KindTable, tree.KindChain, tree.KindLeft, tree.KindRight, tree.KindNote} {
		assert.Equal(t, "< -j DROP", style(kind, "< -j DROP"))
	}
}

func TestTreeStylerColorKeepsLabel(t *testing.T) {
	style := TreeStyler(true)
	for _, kind := range []tree.Kind{tree.KindTable, tree.KindChain, tree.KindLeft, tree.KindRight, tree.KindNote} {
		assert.Contains(t, style(kind, "INPUT"), "INPUT")
	}
	assert.Equal(t, "rule 1", style(tree.KindPlain, "rule 1"))
}

func TestHelpersWithoutColor(t *testing.T) {
	assert.Equal(t, "Compare a (<) and b (>)", Header("Compare a (<) and b (>)", false))
	assert.Equal(t, "done", Status("done", true, false))
	assert.Equal(t, "failed", Status("failed", false, false))
	assert.Equal(t, "careful", Warning("careful", false))
	assert.Contains(t, Status("done", true, true), "done")
}

func TestConfirmAccessible(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"n\n", false},
		{"no\n", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			p := &Prompter{In: strings.NewReader(tt.input), Out: &out, Accessible: true}
			ok, err := p.Confirm("Apply changes?", "3 tables differ")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Contains(t, out.String(), "Apply changes?")
		})
	}
}
