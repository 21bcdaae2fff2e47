// Package tui holds the terminal presentation layer: the color palette used
// for trees and reports, and the interactive confirmation prompt.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"grimm.is/bbfw/internal/tree"
)

// Color Palette
var (
	ColorIce   = lipgloss.Color("#A8D8EA") // Cyan/Blueish for accents
	ColorDeep  = lipgloss.Color("#596E79") // Muted Blue/Grey for secondary text
	ColorText  = lipgloss.Color("#E0E0E0") // Primary text
	ColorAlert = lipgloss.Color("#FF6B6B") // Red for errors and left-hand differences
	ColorGood  = lipgloss.Color("#4ECDC4") // Green for success and right-hand differences
	ColorWarn  = lipgloss.Color("#FFE66D") // Yellow for warnings
	ColorMuted = lipgloss.Color("#6c757d") // Muted text
)

// Styles
var (
	StyleBase = lipgloss.NewStyle().Foreground(ColorText)

	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorIce).
			Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(ColorDeep)

	StyleTitle = lipgloss.NewStyle().
			Foreground(ColorIce).
			Bold(true)

	StyleSubtitle = lipgloss.NewStyle().
			Foreground(ColorDeep).
			Italic(true)

	StyleChain = lipgloss.NewStyle().Foreground(ColorText).Bold(true)

	// Status Indicators
	StyleStatusGood = lipgloss.NewStyle().Foreground(ColorGood).Bold(true)
	StyleStatusBad  = lipgloss.NewStyle().Foreground(ColorAlert).Bold(true)
	StyleStatusWarn = lipgloss.NewStyle().Foreground(ColorWarn).Bold(true)

	StyleLeft  = lipgloss.NewStyle().Foreground(ColorAlert)
	StyleRight = lipgloss.NewStyle().Foreground(ColorGood)
	StyleNote  = lipgloss.NewStyle().Foreground(ColorMuted).Italic(true)
)

// TreeStyler returns the tree.Styler for terminal output. Without color the
// labels are left untouched.
func TreeStyler(color bool) tree.Styler {
	if !color {
		return tree.Plain
	}
	return func(kind tree.Kind, label string) string {
		switch kind {
		case tree.KindTable:
			return StyleTitle.Render(label)
		case tree.KindChain:
			return StyleChain.Render(label)
		case tree.KindLeft:
			return StyleLeft.Render(label)
		case tree.KindRight:
			return StyleRight.Render(label)
		case tree.KindNote:
			return StyleNote.Render(label)
		default:
			return label
		}
	}
}

// Header renders a report title.
func Header(title string, color bool) string {
	if !color {
		return title
	}
	return StyleHeader.Render(title)
}

// Status renders a one-line outcome: ok selects the good or bad style.
func Status(msg string, ok, color bool) string {
	if !color {
		return msg
	}
	if ok {
		return StyleStatusGood.Render(msg)
	}
	return StyleStatusBad.Render(msg)
}

// Warning renders a warning line.
func Warning(msg string, color bool) string {
	if !color {
		return msg
	}
	return StyleStatusWarn.Render(msg)
}
