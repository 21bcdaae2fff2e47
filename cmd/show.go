package cmd

import (
	"context"
	"fmt"
	"time"

	"grimm.is/bbfw/internal/render"
	"grimm.is/bbfw/internal/ruleset"
	"grimm.is/bbfw/internal/tree"
)

// ShowOptions selects what show and showconfig print.
type ShowOptions struct {
	Source  Source
	Filter  render.Filter
	Verbose bool // full iptables-save style listing
	YAML    bool
}

// RunShow prints the live ruleset.
func RunShow(ctx context.Context, configFile string, opts ShowOptions) error {
	app, err := NewApp(configFile, nil)
	if err != nil {
		return err
	}
	return app.Show(ctx, opts)
}

// RunShowConfig prints the declared ruleset.
func RunShowConfig(configFile string, opts ShowOptions) error {
	app, err := NewApp(configFile, nil)
	if err != nil {
		return err
	}
	return app.ShowConfig(opts)
}

// Show prints the live ruleset.
func (a *App) Show(ctx context.Context, opts ShowOptions) (err error) {
	start := time.Now()
	defer func() { a.observe("show", start, err) }()

	live, err := a.Manager.Save(ctx)
	if err != nil {
		return err
	}
	a.Metrics.ObserveRuleset(live)
	return a.print(live, opts)
}

// ShowConfig prints the declared ruleset.
func (a *App) ShowConfig(opts ShowOptions) (err error) {
	start := time.Now()
	defer func() { a.observe("showconfig", start, err) }()

	rs, err := a.loadDesired(opts.Source)
	if err != nil {
		return err
	}
	a.Metrics.ObserveRuleset(rs)
	return a.print(rs, opts)
}

func (a *App) print(rs *ruleset.Ruleset, opts ShowOptions) error {
	if err := checkFilter(rs, opts.Filter); err != nil {
		return err
	}

	switch {
	case opts.YAML:
		data, err := render.YAML(rs)
		if err != nil {
			return err
		}
		_, err = a.Out.Write(data)
		return err
	case opts.Verbose:
		_, err := fmt.Fprint(a.Out, render.Live(rs, opts.Filter).String())
		return err
	default:
		_, err := fmt.Fprint(a.Out, tree.String(render.Summary(rs, opts.Filter), a.styler()))
		return err
	}
}

// checkFilter rejects filters naming a table or chain that rs lacks.
func checkFilter(rs *ruleset.Ruleset, f render.Filter) error {
	if f.Chain != "" && f.Table == "" {
		return fmt.Errorf("--chain requires --table")
	}
	if f.Table == "" {
		return nil
	}
	if !ruleset.IsKnownTable(f.Table) {
		return fmt.Errorf("%w: %s", ruleset.ErrUnknownTable, f.Table)
	}
	t := rs.Table(f.Table)
	if t == nil {
		return fmt.Errorf("table %s not found in %s", f.Table, rs.Name)
	}
	if f.Chain != "" && !t.HasChain(f.Chain) {
		return fmt.Errorf("chain %s not found in table %s", f.Chain, f.Table)
	}
	return nil
}
