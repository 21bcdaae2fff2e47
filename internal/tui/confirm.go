package tui

import (
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/huh"
)

// Prompter asks the operator yes/no questions before destructive actions.
type Prompter struct {
	In  io.Reader
	Out io.Writer

	// Accessible uses plain line prompts instead of the full-screen form,
	// e.g. when stdin is not a terminal.
	Accessible bool
}

// NewPrompter returns a prompter on stdin/stdout. Accessible mode is selected
// with the ACCESSIBLE environment variable, as huh programs conventionally do.
func NewPrompter() *Prompter {
	return &Prompter{
		In:         os.Stdin,
		Out:        os.Stdout,
		Accessible: os.Getenv("ACCESSIBLE") != "",
	}
}

// Confirm asks title and reports the answer. Aborting the form (ctrl+c or
// esc) counts as "no".
func (p *Prompter) Confirm(title, description string) (bool, error) {
	var ok bool
	field := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok)

	if p.Accessible {
		if err := field.RunAccessible(p.Out, p.In); err != nil {
			return false, err
		}
		return ok, nil
	}

	err := huh.NewForm(huh.NewGroup(field)).
		WithTheme(huh.ThemeBase16()).
		WithInput(p.In).
		WithOutput(p.Out).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}
