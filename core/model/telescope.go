package model

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/skyplan/core/sky"
)

// Site is the geodetic location of a telescope.
type Site struct {
	Lat       float64 `json:"lat" yaml:"lat"`
	Lon       float64 `json:"lon" yaml:"lon"`
	Elevation float64 `json:"elevation" yaml:"elevation"`
}

// SlewModel converts angular separation into repositioning time. Rate is in
// deg/s and Accel in deg/s^2; a zero rate means travel is instantaneous and a
// zero acceleration means constant speed.
type SlewModel struct {
	Rate       float64 `json:"rate" yaml:"rate"`
	Accel      float64 `json:"accel" yaml:"accel"`
	SettleSec  float64 `json:"settle_sec" yaml:"settle_sec"`
	ReadoutSec float64 `json:"readout_sec" yaml:"readout_sec"`
}

// Time returns the slew time for a separation in degrees. It is monotone
// non-decreasing in sep and saturates at MaxDuration; readout overlaps the
// slew.
func (m SlewModel) Time(sep float64) time.Duration {
	var t float64
	if sep > 0 {
		t = m.SettleSec + m.travel(sep)
	}
	return seconds(math.Max(t, m.ReadoutSec))
}

func (m SlewModel) travel(sep float64) float64 {
	switch {
	case m.Rate <= 0:
		return 0
	case m.Accel <= 0:
		return sep / m.Rate
	case sep < m.Rate*m.Rate/m.Accel:
		// never reaches full rate
		return 2 * math.Sqrt(sep/m.Accel)
	default:
		return sep/m.Rate + m.Rate/m.Accel
	}
}

func (m SlewModel) validate() error {
	for _, v := range []float64{m.Rate, m.Accel, m.SettleSec, m.ReadoutSec} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("slew parameters must be finite and non-negative")
		}
	}
	return nil
}

// TelescopeProfile is the static configuration of one telescope.
type TelescopeProfile struct {
	ID   string        `json:"id" yaml:"id"`
	FOV  sky.Shape     `json:"fov" yaml:"fov"`
	Slew SlewModel     `json:"slew" yaml:"slew"`
	Site Site          `json:"site" yaml:"site"`
	Park *sky.Pointing `json:"park,omitempty" yaml:"park,omitempty"`

	AirmassLimit float64 `json:"airmass" yaml:"airmass"`
	// TwilightAlt is the highest sun altitude in degrees that still counts as
	// night.
	TwilightAlt float64 `json:"twilight_alt" yaml:"twilight_alt"`

	Filters          []string  `json:"filters" yaml:"filters"`
	ExposureTimes    []float64 `json:"exposure_times" yaml:"exposure_times"`
	AlternateFilters bool      `json:"alternate_filters" yaml:"alternate_filters"`
	MaxFilterSets    int       `json:"max_filter_sets" yaml:"max_filter_sets"`
	MaxTiles         int       `json:"max_tiles" yaml:"max_tiles"`
}

// SetDefaults fills optional fields.
func (p *TelescopeProfile) SetDefaults() {
	if p.AirmassLimit == 0 {
		p.AirmassLimit = 2.5
	}
	if p.TwilightAlt == 0 {
		p.TwilightAlt = -12
	}
}

// Validate checks the profile before any tiling runs.
func (p TelescopeProfile) Validate() error {
	if p.ID == "" {
		return Invalid("", "telescope without id")
	}
	if err := p.FOV.Validate(); err != nil {
		return Invalid(p.ID, "fov: %v", err)
	}
	if err := p.Slew.validate(); err != nil {
		return Invalid(p.ID, "%v", err)
	}
	if len(p.Filters) == 0 {
		return Invalid(p.ID, "no filters")
	}
	if len(p.Filters) != len(p.ExposureTimes) {
		return Invalid(p.ID, "%d filters but %d exposure times", len(p.Filters), len(p.ExposureTimes))
	}
	for i, e := range p.ExposureTimes {
		if !(e > 0) || seconds(e) < MinExposure || seconds(e) == MaxDuration {
			return Invalid(p.ID, "exposure time %d is %v", i, e)
		}
	}
	if p.AirmassLimit != 0 && p.AirmassLimit < 1 {
		return Invalid(p.ID, "airmass limit %v below 1", p.AirmassLimit)
	}
	if p.MaxFilterSets < 0 || p.MaxTiles < 0 {
		return Invalid(p.ID, "negative caps")
	}
	return nil
}

// BaseExposure is the duration of one exposure: the longest configured time
// when filters alternate, the first otherwise.
func (p TelescopeProfile) BaseExposure() time.Duration {
	if len(p.ExposureTimes) == 0 {
		return 0
	}
	if !p.AlternateFilters {
		return seconds(p.ExposureTimes[0])
	}
	var m float64
	for _, e := range p.ExposureTimes {
		m = math.Max(m, e)
	}
	return seconds(m)
}

// MaxExposures caps the exposures any tile may receive: MaxFilterSets passes
// through the filter list. Zero means no cap.
func (p TelescopeProfile) MaxExposures() int {
	if p.MaxFilterSets <= 0 {
		return 0
	}
	return p.MaxFilterSets * len(p.Filters)
}

// FilterSequence returns the filters for n exposures of one tile.
func (p TelescopeProfile) FilterSequence(n int) []string {
	if len(p.Filters) == 0 || n <= 0 {
		return nil
	}
	seq := make([]string, n)
	for i := range seq {
		if p.AlternateFilters {
			seq[i] = p.Filters[i%len(p.Filters)]
		} else {
			seq[i] = p.Filters[0]
		}
	}
	return seq
}

// MinExposure is the shortest exposure time a profile may configure.
const MinExposure = time.Millisecond

// MaxDuration is the longest representable duration. Conversions from
// seconds saturate at it.
const MaxDuration = time.Duration(math.MaxInt64)

func seconds(s float64) time.Duration {
	ns := s * float64(time.Second)
	if ns >= float64(MaxDuration) {
		return MaxDuration
	}
	if !(ns > 0) {
		return 0
	}
	return time.Duration(math.Round(ns))
}

// LoadProfiles loads telescope profiles from a JSON or YAML file holding a
// list of profiles.
func LoadProfiles(path string) ([]TelescopeProfile, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return DecodeProfiles(fh, strings.TrimPrefix(filepath.Ext(path), "."))
}

// DecodeProfiles reads profiles from r in the given format and applies
// defaults.
func DecodeProfiles(r io.Reader, format string) ([]TelescopeProfile, error) {
	var out []TelescopeProfile
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&out); err != nil {
			return nil, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&out); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	for i := range out {
		out[i].SetDefaults()
	}
	return out, nil
}
