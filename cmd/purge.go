package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PurgeOptions controls purge.
type PurgeOptions struct {
	Table     string
	Chain     string
	Recursive bool // purge the chains it jumps to as well
	Force     bool // skip the confirmation prompt
	DryRun    bool
}

// RunPurge empties a live chain.
func RunPurge(ctx context.Context, configFile string, opts PurgeOptions) error {
	app, err := NewApp(configFile, nil)
	if err != nil {
		return err
	}
	return app.Purge(ctx, opts)
}

// Purge removes the rules of a live chain. User chains are deleted along
// with the rules jumping to them; builtin chains keep their policy.
func (a *App) Purge(ctx context.Context, opts PurgeOptions) (err error) {
	start := time.Now()
	defer func() { a.observe("purge", start, err) }()

	if opts.Table == "" || opts.Chain == "" {
		return fmt.Errorf("purge needs a table and a chain")
	}

	lock, err := a.lock(ctx)
	if err != nil {
		return err
	}
	defer lock.Release()

	plan, err := a.Manager.PlanPurge(ctx, opts.Table, opts.Chain, opts.Recursive)
	if err != nil {
		return err
	}
	if len(plan.Purged) > 1 {
		Printer.Fprintf(a.Out, "Purging %s\n", strings.Join(plan.Purged, ", "))
	}
	_, err = a.apply(ctx, plan, applyOptions{
		operation: "purge",
		question:  fmt.Sprintf("Purge chain %s in table %s?", opts.Chain, opts.Table),
		yes:       opts.Force,
		dryRun:    opts.DryRun,
	})
	return err
}
