package cmd

import (
	"grimm.is/bbfw/internal/config"
)

// RunInitConfig writes a configuration file holding the defaults.
func RunInitConfig(path string, force bool) error {
	if err := config.Default().WriteFile(path, force); err != nil {
		return err
	}
	Printer.Printf("Wrote %s\n", path)
	return nil
}
