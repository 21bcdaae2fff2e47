package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grimm.is/bbfw/internal/iptables"
	"grimm.is/bbfw/internal/render"
)

// LoadOptions controls load.
type LoadOptions struct {
	Source Source
	Wipe   bool // replace every table, not only the declared chains
	Yes    bool // skip the confirmation prompt
	DryRun bool // print the differences and stop
}

// RunLoad activates the declared ruleset.
func RunLoad(ctx context.Context, configFile string, opts LoadOptions) error {
	app, err := NewApp(configFile, nil)
	if err != nil {
		return err
	}
	return app.Load(ctx, opts)
}

// Load merges the declared ruleset into the live one and restores the
// tables that change, after showing the differences and asking for
// confirmation.
func (a *App) Load(ctx context.Context, opts LoadOptions) (err error) {
	start := time.Now()
	defer func() { a.observe("load", start, err) }()

	desired, err := a.loadDesired(opts.Source)
	if err != nil {
		return err
	}
	if issues := desired.Validate(); len(issues) > 0 {
		a.Metrics.ObserveIssues(issues)
		for _, issue := range issues {
			Printer.Fprintln(a.Out, issue.String())
		}
		return fmt.Errorf("%s has %d unresolved chain references", desired.Name, len(issues))
	}

	lock, err := a.lock(ctx)
	if err != nil {
		return err
	}
	defer lock.Release()

	plan, err := a.Manager.PlanLoad(ctx, desired, opts.Wipe)
	if err != nil {
		return err
	}
	_, err = a.apply(ctx, plan, applyOptions{
		operation: "load",
		question:  "Load these rules?",
		yes:       opts.Yes,
		dryRun:    opts.DryRun,
	})
	return err
}

type applyOptions struct {
	operation string
	question  string
	yes       bool
	dryRun    bool
}

// apply shows plan, confirms, snapshots the live rules and restores the
// changed tables. Restore failures are reported with the table, chain and
// rule that iptables-restore rejected. It reports whether the live rules
// were replaced.
func (a *App) apply(ctx context.Context, plan *iptables.Plan, opts applyOptions) (bool, error) {
	a.Metrics.ObserveRuleset(plan.Live)
	a.Metrics.ObserveDifferences(plan.Target.Name, plan.Live.Name, len(plan.Report.Tables))

	if plan.Empty() {
		Printer.Fprintf(a.Out, "Rulesets are identical, nothing to do.\n")
		return false, nil
	}

	a.printReport(plan.Report)
	if opts.dryRun {
		return false, nil
	}

	if !opts.yes {
		ok, err := a.Prompt.Confirm(opts.question, fmt.Sprintf("%d table(s) will be replaced", len(plan.Report.Tables)))
		if err != nil {
			return false, err
		}
		if !ok {
			Printer.Fprintf(a.Out, "No changes applied.\n")
			return false, nil
		}
	}

	if err := a.snapshot(ctx, plan.Live, opts.operation); err != nil {
		return false, fmt.Errorf("failed to save live rules before %s: %w", opts.operation, err)
	}

	if err := a.Manager.Apply(ctx, plan); err != nil {
		var re *iptables.RestoreError
		if errors.As(err, &re) && re.Line > 0 {
			Printer.Fprintf(a.Out, "Could not load rules: error at line %d (table %s, chain %s)\n--> %s\n",
				re.Line, re.Location.Table, re.Location.Chain, locationRule(re.Location))
		}
		return false, err
	}

	a.Metrics.ObserveApply(time.Now())
	a.Metrics.ObserveRuleset(plan.Target)
	Printer.Fprintf(a.Out, "Rules loaded successfully.\n")
	return true, nil
}

func locationRule(loc render.Location) string {
	if loc.IsRule() {
		return loc.Rule
	}
	return render.UnknownRule
}
