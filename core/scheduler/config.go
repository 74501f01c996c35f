package scheduler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Overrides adjusts the configured Options for one observing run, typically
// the night after an alert. Nil fields keep the configured value.
type Overrides struct {
	Start       *time.Time `json:"start" yaml:"start"`
	End         *time.Time `json:"end" yaml:"end"`
	Ordering    *Ordering  `json:"ordering" yaml:"ordering"`
	RABandWidth *float64   `json:"ra_band_width" yaml:"ra_band_width"`
	Exclusive   *bool      `json:"exclusive" yaml:"exclusive"`
}

// Apply returns base with the set fields replaced. Moving the start without
// giving an end keeps the window length.
func (o Overrides) Apply(base Options) Options {
	out := base
	if o.Start != nil {
		out.Start = *o.Start
		if o.End == nil {
			out.End = out.Start.Add(base.End.Sub(base.Start))
		}
	}
	if o.End != nil {
		out.End = *o.End
	}
	if o.Ordering != nil {
		out.Ordering = *o.Ordering
	}
	if o.RABandWidth != nil {
		out.RABandWidth = *o.RABandWidth
	}
	if o.Exclusive != nil {
		out.Exclusive = *o.Exclusive
	}
	return out
}

// LoadOverrides reads Overrides from a YAML or JSON file, chosen by
// extension.
func LoadOverrides(path string) (Overrides, error) {
	f, err := os.Open(path)
	if err != nil {
		return Overrides{}, err
	}
	defer f.Close()
	return DecodeOverrides(f, strings.TrimPrefix(filepath.Ext(path), "."))
}

// DecodeOverrides reads Overrides in the given format ("yaml", "yml" or
// "json").
func DecodeOverrides(r io.Reader, format string) (Overrides, error) {
	var o Overrides
	var err error
	switch strings.ToLower(format) {
	case "yaml", "yml":
		err = yaml.NewDecoder(r).Decode(&o)
	case "json":
		err = json.NewDecoder(r).Decode(&o)
	default:
		return o, fmt.Errorf("unsupported schedule format %q", format)
	}
	if err != nil && err != io.EOF {
		return o, fmt.Errorf("decode schedule: %w", err)
	}
	return o, nil
}
