package config

import "fmt"

// RunLogConfig places the run history file and bounds its rotation.
type RunLogConfig struct {
	// Backend selects the store. Only "jsonl" exists.
	Backend string `json:"backend"`
	// Path of the history file, relative to the configuration file. Empty
	// disables the history.
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Enabled reports whether runs are recorded.
func (c RunLogConfig) Enabled() bool { return c.Path != "" }

// SetDefaults rotates at 10 MB and keeps rotated files for 30 days.
func (c *RunLogConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 30
	}
}

func (c RunLogConfig) Validate() error {
	if c.Backend != "jsonl" {
		return fmt.Errorf("run_log: unknown backend %q", c.Backend)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("run_log: rotation limits must not be negative")
	}
	return nil
}
