// Package cmd implements the bbfw subcommands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"grimm.is/bbfw/internal/config"
	"grimm.is/bbfw/internal/diff"
	"grimm.is/bbfw/internal/history"
	"grimm.is/bbfw/internal/i18n"
	"grimm.is/bbfw/internal/iptables"
	"grimm.is/bbfw/internal/logging"
	"grimm.is/bbfw/internal/metrics"
	"grimm.is/bbfw/internal/parser"
	"grimm.is/bbfw/internal/render"
	"grimm.is/bbfw/internal/ruleset"
	"grimm.is/bbfw/internal/tree"
	"grimm.is/bbfw/internal/tui"
)

// Printer writes localized CLI messages.
var Printer = i18n.NewCLIPrinter()

// Confirmer asks yes/no questions. tui.Prompter is the interactive one.
type Confirmer interface {
	Confirm(title, description string) (bool, error)
}

// App carries the components every subcommand needs.
type App struct {
	Config   *config.Config
	Registry *ruleset.Registry
	Manager  *iptables.Manager
	Metrics  *metrics.Registry
	Prompt   Confirmer
	Out      io.Writer
	Color    bool

	log *logging.Logger
}

// NewApp loads the configuration at configFile and wires the components.
// A nil runner selects the real iptables tools.
func NewApp(configFile string, runner iptables.CommandRunner) (*App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	logging.SetDefault(logging.New(logging.Config{
		Level:  level,
		Output: os.Stderr,
		JSON:   cfg.LogJSON,
	}))

	return newApp(cfg, runner)
}

func newApp(cfg *config.Config, runner iptables.CommandRunner) (*App, error) {
	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	icfg := iptables.DefaultConfig()
	icfg.SaveCommand = cfg.SaveCommand
	icfg.RestoreCommand = cfg.RestoreCommand

	return &App{
		Config:   cfg,
		Registry: reg,
		Manager:  iptables.NewManager(runner, icfg, reg),
		Metrics:  metrics.New(),
		Prompt:   tui.NewPrompter(),
		Out:      os.Stdout,
		Color:    cfg.Color,
		log:      logging.WithComponent("cli"),
	}, nil
}

// observe records the outcome of op and flushes the metrics textfile.
func (a *App) observe(op string, start time.Time, err error) {
	a.Metrics.ObserveOperation(op, start, err)
	if a.Config.MetricsTextfile == "" {
		return
	}
	if werr := a.Metrics.WriteTextfile(a.Config.MetricsTextfile); werr != nil {
		a.log.Warn("metrics not written", "error", werr)
	}
}

// Source selects where a declared ruleset is read from. File wins over Dir;
// with neither set the configured directory is used.
type Source struct {
	Dir  string
	File string
}

// loadDesired parses the declared ruleset.
func (a *App) loadDesired(src Source) (*ruleset.Ruleset, error) {
	if src.File != "" {
		f, err := os.Open(src.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open rules file: %w", err)
		}
		defer f.Close()
		return parser.ParseSave(f, parser.WithName(src.File), parser.WithMatchers(a.Registry))
	}

	dir := src.Dir
	if dir == "" {
		dir = a.Config.ConfigDir
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("config directory: %w", err)
	}
	return parser.ParseDir(os.DirFS(dir), parser.WithName(dir), parser.WithMatchers(a.Registry))
}

func (a *App) styler() tree.Styler {
	return tui.TreeStyler(a.Color)
}

// lock takes the bbfw lock file for the duration of a change.
func (a *App) lock(ctx context.Context) (*iptables.FileLock, error) {
	if a.Config.LockFile == "" {
		return &iptables.FileLock{}, nil
	}
	return iptables.AcquireLock(ctx, a.Config.LockFile, iptables.DefaultRetryConfig())
}

// snapshot records live in the history database before it is replaced.
// Without a history database it does nothing.
func (a *App) snapshot(ctx context.Context, live *ruleset.Ruleset, operation string) error {
	if a.Config.HistoryDB == "" {
		return nil
	}
	store, err := a.openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	content := render.Live(live, render.Filter{}).String()
	snap, err := store.Record(ctx, history.NewSnapshot(live, operation, content))
	if err != nil {
		return err
	}
	if a.Config.HistoryKeep > 0 {
		if _, err := store.Prune(ctx, a.Config.HistoryKeep); err != nil {
			a.log.Warn("history prune failed", "error", err)
		}
	}
	a.log.Debug("live rules saved", "snapshot", snap.ShortID())
	return nil
}

func (a *App) openHistory() (*history.Store, error) {
	if a.Config.HistoryDB == "" {
		return nil, fmt.Errorf("history is disabled (history_db is empty)")
	}
	return history.Open(history.DefaultOptions(a.Config.HistoryDB))
}

// printReport writes the difference tree of a plan.
func (a *App) printReport(r *diff.Report) {
	Printer.Fprintln(a.Out, tui.Header(r.Title(), a.Color))
	for _, line := range r.Lines(a.styler()) {
		Printer.Fprintln(a.Out, line)
	}
}
