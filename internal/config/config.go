// Package config handles the bbfw tool configuration.
//
// # Overview
//
// The configuration is a small HCL file (bbfw.hcl) that tells bbfw where the
// declarative table sources live, which iptables binaries to drive, where to
// keep snapshot history and how to compare rule properties the builtin
// matchers do not know about.
//
// # Example
//
//	config_dir       = "/etc/bbfw/tables"
//	save_command     = "iptables-save"
//	restore_command  = "iptables-restore"
//	history_db       = "/var/lib/bbfw/history.db"
//	lock_file        = "/run/bbfw.lock"
//	log_level        = "info"
//
//	matcher "--log-prefix" {
//	  kind = "quoted"
//	}
//
// A missing file is not an error: [Load] returns [Default] values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"grimm.is/bbfw/internal/brand"
)

// CurrentSchemaVersion defines the current schema version of the configuration.
const CurrentSchemaVersion = "1.0"

// DefaultHistoryKeep is the number of snapshots kept when history_keep is unset.
const DefaultHistoryKeep = 20

// Config is the top-level structure of bbfw.hcl.
type Config struct {
	SchemaVersion string `hcl:"schema_version,optional"`

	// Directory holding one subdirectory of .src files per table.
	ConfigDir string `hcl:"config_dir,optional"`

	SaveCommand    string `hcl:"save_command,optional"`
	RestoreCommand string `hcl:"restore_command,optional"`

	// Snapshot history (SQLite). Empty disables snapshots.
	HistoryDB   string `hcl:"history_db,optional"`
	HistoryKeep int    `hcl:"history_keep,optional"`

	LockFile string `hcl:"lock_file,optional"`

	// Prometheus textfile written after each command. Empty disables it.
	MetricsTextfile string `hcl:"metrics_textfile,optional"`

	LogLevel string `hcl:"log_level,optional"`
	LogJSON  bool   `hcl:"log_json,optional"`
	Color    bool   `hcl:"color,optional"`

	Matchers []MatcherConfig `hcl:"matcher,block"`
}

// MatcherConfig registers a matcher kind for a rule property.
type MatcherConfig struct {
	Name string `hcl:"name,label"`
	Kind string `hcl:"kind"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		SchemaVersion:  CurrentSchemaVersion,
		ConfigDir:      brand.TablesDir(),
		SaveCommand:    "iptables-save",
		RestoreCommand: "iptables-restore",
		HistoryDB:      filepath.Join(brand.GetStateDir(), "history.db"),
		HistoryKeep:    DefaultHistoryKeep,
		LockFile:       filepath.Join(brand.GetRunDir(), brand.LowerName+".lock"),
		LogLevel:       "info",
		Color:          true,
	}
}

// Load reads the configuration at path on top of the defaults. A missing
// file yields the defaults. The file must end in .hcl or .json.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes HCL (or JSON, by filename suffix) on top of the defaults
// and validates the result.
func Parse(data []byte, filename string) (*Config, error) {
	cfg := Default()
	if err := hclsimple.Decode(filename, data, nil, cfg); err != nil {
		return nil, fmt.Errorf("HCL decode error: %w", err)
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = CurrentSchemaVersion
	}
	if errs := cfg.Validate(); errs.HasErrors() {
		return nil, errs
	}
	return cfg, nil
}
