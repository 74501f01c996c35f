package metrics

import "github.com/kilianp07/skyplan/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	// Textfile, when set, receives a Prometheus text exposition of the
	// default registry after each plan.
	Textfile string `json:"textfile" yaml:"textfile"`
}
