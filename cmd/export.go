package cmd

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"grimm.is/bbfw/internal/render"
)

// ExportOptions controls export.
type ExportOptions struct {
	Dir   string // target directory, the configured one when empty
	Force bool   // overwrite existing files
}

// RunExport writes the live ruleset in directory format.
func RunExport(ctx context.Context, configFile string, opts ExportOptions) error {
	app, err := NewApp(configFile, nil)
	if err != nil {
		return err
	}
	return app.Export(ctx, opts)
}

// Export writes the live ruleset as <table>/<chain>.src files plus one
// <table>.props file per table, the layout load reads back.
func (a *App) Export(ctx context.Context, opts ExportOptions) (err error) {
	start := time.Now()
	defer func() { a.observe("export", start, err) }()

	dir := opts.Dir
	if dir == "" {
		dir = a.Config.ConfigDir
	}

	live, err := a.Manager.Save(ctx)
	if err != nil {
		return err
	}
	a.Metrics.ObserveRuleset(live)

	files := render.Directory(live)
	if !opts.Force {
		for _, f := range files {
			target := filepath.Join(dir, filepath.FromSlash(f.Path))
			if _, err := os.Stat(target); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", target)
			}
		}
	}

	for _, f := range files {
		target := filepath.Join(dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
		}
		if err := os.WriteFile(target, f.Data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", target, err)
		}
		if strings.HasSuffix(f.Path, ".props") {
			Printer.Fprintf(a.Out, "Table %s saved.\n", strings.TrimSuffix(path.Base(f.Path), ".props"))
		}
	}
	return nil
}
