package cmd

import (
	"context"
	"strings"
	"text/tabwriter"
	"time"

	"grimm.is/bbfw/internal/history"
	"grimm.is/bbfw/internal/parser"
)

// RunHistory lists the recorded snapshots.
func RunHistory(ctx context.Context, configFile string, limit int) error {
	app, err := NewApp(configFile, nil)
	if err != nil {
		return err
	}
	return app.History(ctx, limit)
}

// RollbackOptions controls rollback.
type RollbackOptions struct {
	ID     string // snapshot id or unique prefix, the newest when empty
	Yes    bool
	DryRun bool
}

// RunRollback restores a snapshot.
func RunRollback(ctx context.Context, configFile string, opts RollbackOptions) error {
	app, err := NewApp(configFile, nil)
	if err != nil {
		return err
	}
	return app.Rollback(ctx, opts)
}

// History prints the newest snapshots first.
func (a *App) History(ctx context.Context, limit int) (err error) {
	start := time.Now()
	defer func() { a.observe("history", start, err) }()

	store, err := a.openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	snaps, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		Printer.Fprintf(a.Out, "No snapshots recorded.\n")
		return nil
	}

	w := tabwriter.NewWriter(a.Out, 0, 0, 2, ' ', 0)
	Printer.Fprintf(w, "ID\tCREATED\tOPERATION\tTABLES\tCHAINS\tRULES\n")
	for _, s := range snaps {
		Printer.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			s.ShortID(), s.CreatedAt.Local().Format(time.DateTime), s.Operation, s.Tables, s.Chains, s.Rules)
	}
	return w.Flush()
}

// Rollback replaces the live ruleset with a snapshot. Tables absent from the
// snapshot are emptied. The current live rules are snapshotted first, so a
// rollback can itself be rolled back.
func (a *App) Rollback(ctx context.Context, opts RollbackOptions) (err error) {
	start := time.Now()
	defer func() { a.observe("rollback", start, err) }()

	store, err := a.openHistory()
	if err != nil {
		return err
	}
	var snap history.Snapshot
	if opts.ID == "" {
		snap, err = store.Latest(ctx)
	} else {
		snap, err = store.Get(ctx, opts.ID)
	}
	store.Close()
	if err != nil {
		return err
	}

	target, err := parser.ParseSave(strings.NewReader(snap.Content),
		parser.WithName("snapshot "+snap.ShortID()), parser.WithMatchers(a.Registry))
	if err != nil {
		return err
	}

	lock, err := a.lock(ctx)
	if err != nil {
		return err
	}
	defer lock.Release()

	live, err := a.Manager.Save(ctx)
	if err != nil {
		return err
	}
	plan, err := a.Manager.PlanLoadFrom(live, target, true)
	if err != nil {
		return err
	}
	applied, err := a.apply(ctx, plan, applyOptions{
		operation: "rollback",
		question:  "Restore snapshot " + snap.ShortID() + "?",
		yes:       opts.Yes,
		dryRun:    opts.DryRun,
	})
	if err != nil {
		return err
	}
	if applied {
		Printer.Fprintf(a.Out, "Restored snapshot %s.\n", snap.ShortID())
	}
	return nil
}
