package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Encode renders the configuration as HCL.
func (c *Config) Encode() []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	body.SetAttributeValue("schema_version", cty.StringVal(c.SchemaVersion))
	body.AppendNewline()

	body.SetAttributeValue("config_dir", cty.StringVal(c.ConfigDir))
	body.SetAttributeValue("save_command", cty.StringVal(c.SaveCommand))
	body.SetAttributeValue("restore_command", cty.StringVal(c.RestoreCommand))
	body.AppendNewline()

	body.SetAttributeValue("history_db", cty.StringVal(c.HistoryDB))
	body.SetAttributeValue("history_keep", cty.NumberIntVal(int64(c.HistoryKeep)))
	body.SetAttributeValue("lock_file", cty.StringVal(c.LockFile))
	if c.MetricsTextfile != "" {
		body.SetAttributeValue("metrics_textfile", cty.StringVal(c.MetricsTextfile))
	}
	body.AppendNewline()

	body.SetAttributeValue("log_level", cty.StringVal(c.LogLevel))
	if c.LogJSON {
		body.SetAttributeValue("log_json", cty.BoolVal(true))
	}
	body.SetAttributeValue("color", cty.BoolVal(c.Color))

	for _, m := range c.Matchers {
		body.AppendNewline()
		mb := body.AppendNewBlock("matcher", []string{m.Name}).Body()
		mb.SetAttributeValue("kind", cty.StringVal(m.Kind))
	}

	return hclwrite.Format(f.Bytes())
}

// WriteFile writes the configuration to path, creating parent directories.
// It refuses to overwrite an existing file unless force is set.
func (c *Config) WriteFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, c.Encode(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
