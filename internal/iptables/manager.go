// Package iptables drives iptables-save and iptables-restore and turns
// their text into rulesets and back.
package iptables

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"grimm.is/bbfw/internal/diff"
	"grimm.is/bbfw/internal/logging"
	"grimm.is/bbfw/internal/parser"
	"grimm.is/bbfw/internal/render"
	"grimm.is/bbfw/internal/ruleset"
)

// LiveName names rulesets read from the kernel.
const LiveName = "live"

var (
	// ErrLocked means another process holds the xtables lock.
	ErrLocked = errors.New("xtables lock is held by another process")
	// ErrNoCommand means a save or restore command was not configured.
	ErrNoCommand = errors.New("no command configured")
)

// RestoreError is returned when iptables-restore rejects its input. Line is
// the failing input line when the tool reported one, zero otherwise.
type RestoreError struct {
	Line     int
	Location render.Location
	Output   string
	Err      error
}

func (e *RestoreError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("restore failed at line %d (%s): %v", e.Line, e.Location, e.Err)
	}
	return fmt.Sprintf("restore failed: %v", e.Err)
}

func (e *RestoreError) Unwrap() error { return e.Err }

// iptables-restore reports "Error occurred at line: N" (legacy) or
// "line N failed" (nft backend).
var errorLineRe = regexp.MustCompile(`(?i)(?:error occurred at line:\s*(\d+)|line\s+(\d+)\s+failed)`)

func failedLine(output string) int {
	m := errorLineRe.FindStringSubmatch(output)
	if m == nil {
		return 0
	}
	for _, g := range m[1:] {
		if n, err := strconv.Atoi(g); err == nil {
			return n
		}
	}
	return 0
}

// Config names the external tools.
type Config struct {
	SaveCommand    string
	RestoreCommand string
	Retry          RetryConfig
}

// DefaultConfig uses the iptables tools from $PATH.
func DefaultConfig() Config {
	return Config{
		SaveCommand:    "iptables-save",
		RestoreCommand: "iptables-restore",
		Retry:          DefaultRetryConfig(),
	}
}

// Manager reads and writes the live ruleset.
type Manager struct {
	runner     CommandRunner
	cfg        Config
	comparator *diff.Comparator
	log        *logging.Logger
}

// NewManager creates a manager. A nil runner selects DefaultCommandRunner.
func NewManager(runner CommandRunner, cfg Config, reg *ruleset.Registry) *Manager {
	if runner == nil {
		runner = DefaultCommandRunner
	}
	return &Manager{
		runner:     runner,
		cfg:        cfg,
		comparator: diff.NewComparator(reg),
		log:        logging.WithComponent("iptables"),
	}
}

// Comparator returns the comparator used for plans.
func (m *Manager) Comparator() *diff.Comparator { return m.comparator }

func splitCommand(command string) (string, []string, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil, ErrNoCommand
	}
	return fields[0], fields[1:], nil
}

func classify(err error, output string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error()+output, "xtables lock") {
		return fmt.Errorf("%w: %v", ErrLocked, err)
	}
	return err
}

// Dump returns the raw iptables-save output.
func (m *Manager) Dump(ctx context.Context) (string, error) {
	name, args, err := splitCommand(m.cfg.SaveCommand)
	if err != nil {
		return "", fmt.Errorf("save: %w", err)
	}
	out, err := RetryWithResult(ctx, m.cfg.Retry, func() ([]byte, error) {
		out, err := m.runner.Output(ctx, name, args...)
		return out, classify(err, "")
	})
	if err != nil {
		return "", fmt.Errorf("failed to dump live rules: %w", err)
	}
	m.log.Debug("dumped live rules", "bytes", len(out))
	return string(out), nil
}

// Save reads the live ruleset.
func (m *Manager) Save(ctx context.Context) (*ruleset.Ruleset, error) {
	text, err := m.Dump(ctx)
	if err != nil {
		return nil, err
	}
	rs, err := parser.ParseSave(strings.NewReader(text),
		parser.WithName(LiveName), parser.WithMatchers(m.comparator.Matchers))
	if err != nil {
		return nil, fmt.Errorf("failed to parse live rules: %w", err)
	}
	return rs, nil
}

// Restore applies rs with iptables-restore. Only the tables present in rs
// are replaced. On failure the error is a *RestoreError locating the
// rejected line.
func (m *Manager) Restore(ctx context.Context, rs *ruleset.Ruleset) error {
	name, args, err := splitCommand(m.cfg.RestoreCommand)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	doc := render.Live(rs, render.Filter{})
	input := doc.String()

	var output []byte
	err = Retry(ctx, m.cfg.Retry, func() error {
		var runErr error
		output, runErr = m.runner.RunInput(ctx, input, name, args...)
		return classify(runErr, string(output))
	})
	if err == nil {
		m.log.Info("restored ruleset", "ruleset", rs.Name, "tables", strings.Join(rs.TableNames(), ","))
		return nil
	}
	if errors.Is(err, ErrLocked) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("restore: %w", err)
	}

	re := &RestoreError{Line: failedLine(string(output)), Output: strings.TrimSpace(string(output)), Err: err}
	re.Location = doc.Locate(re.Line)
	m.log.Error("restore rejected", "line", re.Line, "table", re.Location.Table,
		"chain", re.Location.Chain, "rule", re.Location.Rule)
	return re
}
