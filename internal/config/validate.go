package config

import (
	"fmt"
	"strings"

	"grimm.is/bbfw/internal/logging"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate validates the entire configuration.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if c.SchemaVersion != "" && c.SchemaVersion != CurrentSchemaVersion {
		errs = append(errs, ValidationError{
			Field:   "schema_version",
			Message: fmt.Sprintf("unsupported version %s (supported: %s)", c.SchemaVersion, CurrentSchemaVersion),
		})
	}
	if strings.TrimSpace(c.SaveCommand) == "" {
		errs = append(errs, ValidationError{Field: "save_command", Message: "must not be empty"})
	}
	if strings.TrimSpace(c.RestoreCommand) == "" {
		errs = append(errs, ValidationError{Field: "restore_command", Message: "must not be empty"})
	}
	if c.HistoryKeep < 0 {
		errs = append(errs, ValidationError{
			Field:   "history_keep",
			Message: fmt.Sprintf("must not be negative, got %d", c.HistoryKeep),
		})
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, ValidationError{Field: "log_level", Message: err.Error()})
	}

	errs = append(errs, c.validateMatchers()...)
	return errs
}

func (c *Config) validateMatchers() ValidationErrors {
	var errs ValidationErrors

	seen := make(map[string]bool)
	for i, m := range c.Matchers {
		field := fmt.Sprintf("matcher[%s]", m.Name)
		if m.Name == "" {
			field = fmt.Sprintf("matcher[%d]", i)
			errs = append(errs, ValidationError{Field: field, Message: "property name is required"})
		}
		if seen[m.Name] {
			errs = append(errs, ValidationError{Field: field, Message: "duplicate matcher"})
		}
		seen[m.Name] = true

		if _, ok := matcherKinds[m.Kind]; !ok {
			errs = append(errs, ValidationError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("unknown kind %q (valid: %s)", m.Kind, strings.Join(MatcherKinds(), ", ")),
			})
		}
	}
	return errs
}
