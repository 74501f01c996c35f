package config

import "fmt"

// VisibilityConfig selects the visibility oracle.
type VisibilityConfig struct {
	// Mode is "ephemeris" (site night and airmass) or "always" (every tile
	// visible for the whole window).
	Mode string `json:"mode"`
	// StepSec is the ephemeris sampling step.
	StepSec float64 `json:"step_sec"`
	// CacheMinutes keeps computed windows; zero disables the cache.
	CacheMinutes float64 `json:"cache_minutes"`
}

// SetDefaults applies the ephemeris oracle with a 5 minute step.
func (c *VisibilityConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = "ephemeris"
	}
	if c.StepSec == 0 {
		c.StepSec = 300
	}
}

// Validate checks the mode and step.
func (c VisibilityConfig) Validate() error {
	if c.Mode != "ephemeris" && c.Mode != "always" {
		return fmt.Errorf("unknown visibility mode %s", c.Mode)
	}
	if c.StepSec <= 0 || c.CacheMinutes < 0 {
		return fmt.Errorf("visibility step and cache must be positive")
	}
	return nil
}
