package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/skyplan/core/metrics"
	"github.com/kilianp07/skyplan/core/model"
	"github.com/kilianp07/skyplan/core/planner"
	"github.com/kilianp07/skyplan/core/scheduler"
	"github.com/kilianp07/skyplan/core/tiling"
	"github.com/kilianp07/skyplan/infra/mqtt"
)

// Config is the whole skyplan configuration file.
type Config struct {
	// ProfilesFile optionally names a YAML or JSON list of telescope
	// profiles that telescopes can refer to with profile_ref.
	ProfilesFile string            `json:"profiles_file"`
	Telescopes   []TelescopeConfig `json:"telescopes"`
	Scheduler    scheduler.Options `json:"scheduler"`
	// HorizonHours sets the observing window length when scheduler.end is
	// not given.
	HorizonHours           float64          `json:"horizon_hours"`
	ObservabilityThreshold float64          `json:"observability_threshold"`
	// IterativeTiling tiles telescopes one after another so later ones skip
	// cells already observed.
	IterativeTiling bool             `json:"iterative_tiling"`
	Visibility      VisibilityConfig `json:"visibility"`
	Metrics         metrics.Config   `json:"metrics"`
	MQTT            mqtt.Config      `json:"mqtt"`
	RunLog          RunLogConfig     `json:"run_log"`
	Server          ServerConfig     `json:"server"`
}

// TelescopeConfig extends the planner settings with file references.
type TelescopeConfig struct {
	planner.TelescopeConfig `json:",squash"`
	// ProfileRef selects a profile from ProfilesFile instead of an inline one.
	ProfileRef       string `json:"profile_ref"`
	TessellationFile string `json:"tessellation_file"`
	CatalogFile      string `json:"catalog_file"`
}

// Load reads a YAML or JSON file, applies K_ environment overrides
// (K_MQTT__BROKER sets mqtt.broker), fills defaults and validates.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf(&cfg)); err != nil {
		return nil, err
	}
	cfg.ProfilesFile = relative(path, cfg.ProfilesFile)
	cfg.RunLog.Path = relative(path, cfg.RunLog.Path)
	cfg.Metrics.Textfile = relative(path, cfg.Metrics.Textfile)
	for i := range cfg.Telescopes {
		t := &cfg.Telescopes[i]
		t.TessellationFile = relative(path, t.TessellationFile)
		t.CatalogFile = relative(path, t.CatalogFile)
	}
	cfg.SetDefaults(time.Now())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func relative(cfgPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(cfgPath), p)
}

// SetDefaults fills the observing window and section defaults. now anchors
// a missing window start.
func (c *Config) SetDefaults(now time.Time) {
	if c.HorizonHours == 0 {
		c.HorizonHours = 24
	}
	if c.Scheduler.Start.IsZero() {
		c.Scheduler.Start = now.UTC().Truncate(time.Minute)
	}
	if c.Scheduler.End.IsZero() {
		c.Scheduler.End = c.Scheduler.Start.Add(time.Duration(c.HorizonHours * float64(time.Hour)))
	}
	c.Scheduler.SetDefaults()
	c.Visibility.SetDefaults()
	c.RunLog.SetDefaults()
	c.Server.SetDefaults()
}

// Validate checks the sections that can be checked without reading files.
func (c Config) Validate() error {
	if len(c.Telescopes) == 0 {
		return fmt.Errorf("no telescopes configured")
	}
	for i, t := range c.Telescopes {
		if t.ProfileRef == "" && t.Profile.ID == "" {
			return fmt.Errorf("telescope %d: needs an inline profile or profile_ref", i)
		}
		if t.ProfileRef != "" && c.ProfilesFile == "" {
			return fmt.Errorf("telescope %d: profile_ref %q without profiles_file", i, t.ProfileRef)
		}
	}
	if c.HorizonHours < 0 {
		return fmt.Errorf("negative horizon_hours")
	}
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if err := c.Visibility.Validate(); err != nil {
		return err
	}
	return c.RunLog.Validate()
}

// PlannerTelescopes resolves profile references and loads tessellation and
// catalog files into planner settings.
func (c Config) PlannerTelescopes() ([]planner.TelescopeConfig, error) {
	var profiles map[string]model.TelescopeProfile
	if c.ProfilesFile != "" {
		list, err := model.LoadProfiles(c.ProfilesFile)
		if err != nil {
			return nil, fmt.Errorf("profiles: %w", err)
		}
		profiles = make(map[string]model.TelescopeProfile, len(list))
		for _, p := range list {
			profiles[p.ID] = p
		}
	}
	out := make([]planner.TelescopeConfig, 0, len(c.Telescopes))
	for _, t := range c.Telescopes {
		pc := t.TelescopeConfig
		if t.ProfileRef != "" {
			p, ok := profiles[t.ProfileRef]
			if !ok {
				return nil, fmt.Errorf("unknown profile_ref %q", t.ProfileRef)
			}
			pc.Profile = p
		}
		if t.TessellationFile != "" {
			pts, err := tiling.LoadTessellation(t.TessellationFile)
			if err != nil {
				return nil, fmt.Errorf("%s tessellation: %w", pc.Profile.ID, err)
			}
			pc.TilingParams.Tessellation = pts
		}
		if t.CatalogFile != "" {
			src, err := tiling.LoadCatalog(t.CatalogFile)
			if err != nil {
				return nil, fmt.Errorf("%s catalog: %w", pc.Profile.ID, err)
			}
			pc.TilingParams.Catalog = src
		}
		out = append(out, pc)
	}
	return out, nil
}

// unmarshalConf decodes durations, RFC3339 timestamps and comma separated
// lists from string values, which env overrides always produce.
func unmarshalConf(out *Config) koanf.UnmarshalConf {
	return koanf.UnmarshalConf{
		Tag: "json",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			TagName:          "json",
			WeaklyTypedInput: true,
			Result:           out,
		},
	}
}
