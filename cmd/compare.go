package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"grimm.is/bbfw/internal/diff"
	"grimm.is/bbfw/internal/parser"
	"grimm.is/bbfw/internal/ruleset"
)

// ErrDiffer is returned by compare when the rulesets are not equal, so the
// process can exit non-zero without printing an error.
var ErrDiffer = errors.New("rulesets differ")

// CompareOptions selects both sides of a comparison. The left side is the
// declared ruleset; the right side is the live one unless Against names a
// save-format file.
type CompareOptions struct {
	Source  Source
	Against string
	Scope   diff.Scope
	Unified bool
}

// RunCompare compares declared rules against live rules or a file.
func RunCompare(ctx context.Context, configFile string, opts CompareOptions) error {
	app, err := NewApp(configFile, nil)
	if err != nil {
		return err
	}
	return app.Compare(ctx, opts)
}

// Compare prints the differences between the two sides of opts.
func (a *App) Compare(ctx context.Context, opts CompareOptions) (err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, ErrDiffer) {
			a.observe("compare", start, nil)
			return
		}
		a.observe("compare", start, err)
	}()

	if opts.Scope.Chain != "" && opts.Scope.Table == "" {
		return fmt.Errorf("--chain requires --table")
	}

	left, err := a.loadDesired(opts.Source)
	if err != nil {
		return err
	}
	right, err := a.loadRight(ctx, opts.Against)
	if err != nil {
		return err
	}

	report := a.Manager.Comparator().Compare(left, right, opts.Scope)
	a.Metrics.ObserveDifferences(left.Name, right.Name, len(report.Tables))

	if report.Empty() {
		Printer.Fprintf(a.Out, "No difference.\n")
		return nil
	}

	if opts.Unified {
		text, err := diff.Unified(left, right, opts.Scope)
		if err != nil {
			return err
		}
		fmt.Fprint(a.Out, text)
	} else {
		a.printReport(report)
	}
	return ErrDiffer
}

func (a *App) loadRight(ctx context.Context, against string) (*ruleset.Ruleset, error) {
	if against == "" {
		return a.Manager.Save(ctx)
	}
	f, err := os.Open(against)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer f.Close()
	return parser.ParseSave(f, parser.WithName(against), parser.WithMatchers(a.Registry))
}
