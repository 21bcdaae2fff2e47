package cmd

import (
	"fmt"
	"time"

	"grimm.is/bbfw/internal/ruleset"
	"grimm.is/bbfw/internal/tui"
)

// RunValidate checks the declared ruleset for jumps to undefined chains.
func RunValidate(configFile string, src Source) error {
	app, err := NewApp(configFile, nil)
	if err != nil {
		return err
	}
	return app.Validate(src)
}

// Validate parses the declared ruleset and reports every issue. Critical
// issues make it fail.
func (a *App) Validate(src Source) (err error) {
	start := time.Now()
	defer func() { a.observe("validate", start, err) }()

	rs, err := a.loadDesired(src)
	if err != nil {
		return err
	}
	a.Metrics.ObserveRuleset(rs)

	issues := rs.Validate()
	a.Metrics.ObserveIssues(issues)
	if len(issues) == 0 {
		Printer.Fprintf(a.Out, "No problems found.\n")
		return nil
	}

	critical := 0
	for _, issue := range issues {
		if issue.Severity == ruleset.SeverityCritical {
			critical++
			Printer.Fprintln(a.Out, tui.Status(issue.String(), false, a.Color))
			continue
		}
		Printer.Fprintln(a.Out, tui.Warning(issue.String(), a.Color))
	}
	if critical > 0 {
		return fmt.Errorf("%d critical issue(s) in %s", critical, rs.Name)
	}
	return nil
}
