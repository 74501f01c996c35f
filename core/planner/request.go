package planner

import (
	"fmt"
	"time"

	"github.com/kilianp07/skyplan/core/allocation"
	"github.com/kilianp07/skyplan/core/model"
	"github.com/kilianp07/skyplan/core/scheduler"
	"github.com/kilianp07/skyplan/core/tiling"
)

// TelescopeConfig is everything the pipeline needs for one telescope.
type TelescopeConfig struct {
	Profile      model.TelescopeProfile `json:"profile" yaml:"profile"`
	Tiling       tiling.Kind            `json:"tiling" yaml:"tiling"`
	TilingParams tiling.Params          `json:"tiling_params" yaml:"tiling_params"`
	Law          allocation.Law         `json:"law" yaml:"law"`
	Allocation   allocation.Params      `json:"allocation" yaml:"allocation"`
	// BudgetSec is the telescope time for slews and exposures. Zero means the
	// whole observing window.
	BudgetSec float64 `json:"budget_sec" yaml:"budget_sec"`
}

// SetDefaults fills the strategy choices and profile defaults.
func (c *TelescopeConfig) SetDefaults() {
	c.Profile.SetDefaults()
	if c.Tiling == "" {
		c.Tiling = tiling.Greedy
	}
	if c.Law == "" {
		c.Law = allocation.PowerLaw
	}
	c.TilingParams.SetDefaults()
}

// Validate checks the profile and strategy names.
func (c TelescopeConfig) Validate() error {
	if err := c.Profile.Validate(); err != nil {
		return err
	}
	if !c.Tiling.Valid() {
		return model.Invalid(c.Profile.ID, "unknown tiling strategy %q", c.Tiling)
	}
	switch c.Law {
	case allocation.PowerLaw, allocation.Uniform, allocation.LP:
	default:
		return model.Invalid(c.Profile.ID, "unknown allocation law %q", c.Law)
	}
	if c.BudgetSec < 0 {
		return model.Invalid(c.Profile.ID, "negative budget %v", c.BudgetSec)
	}
	if err := c.TilingParams.Validate(); err != nil {
		return err
	}
	return nil
}

// budget resolves BudgetSec against the observing window.
func (c TelescopeConfig) budget(opts scheduler.Options) time.Duration {
	if c.BudgetSec > 0 {
		return time.Duration(c.BudgetSec * float64(time.Second))
	}
	return opts.End.Sub(opts.Start)
}

// Request is one planning run.
type Request struct {
	Grid       *model.ProbabilityGrid
	Telescopes []TelescopeConfig
	Schedule   scheduler.Options
	// ObservabilityThreshold excludes a telescope whose visible tiles hold
	// less than this fraction of the grid's probability. Zero disables it.
	ObservabilityThreshold float64
	// Iterative tiles telescopes one after another in id order. Cells
	// observed by earlier telescopes are zeroed in the map later ones tile,
	// so their tile masses count only what is left.
	Iterative bool
}

// normalize applies defaults to a copy and validates it. Every failure is
// an InputInvalid error and nothing has been computed yet.
func (r Request) normalize() (Request, error) {
	if r.Grid == nil {
		return r, model.Invalid("", "no probability grid")
	}
	if len(r.Telescopes) == 0 {
		return r, model.Invalid("", "no telescope configured")
	}
	if r.ObservabilityThreshold < 0 || r.ObservabilityThreshold > 1 {
		return r, model.Invalid("", "observability threshold %v outside [0,1]", r.ObservabilityThreshold)
	}
	r.Schedule.SetDefaults()
	if err := r.Schedule.Validate(); err != nil {
		return r, err
	}
	tels := make([]TelescopeConfig, len(r.Telescopes))
	seen := make(map[string]bool, len(tels))
	for i, c := range r.Telescopes {
		c.SetDefaults()
		if err := c.Validate(); err != nil {
			return r, err
		}
		if seen[c.Profile.ID] {
			return r, model.Invalid(c.Profile.ID, "duplicate telescope id")
		}
		seen[c.Profile.ID] = true
		tels[i] = c
	}
	r.Telescopes = tels
	return r, nil
}

func (r Request) String() string {
	return fmt.Sprintf("nside=%d telescopes=%d window=[%s, %s)", r.Grid.Nside(), len(r.Telescopes),
		r.Schedule.Start.Format(time.RFC3339), r.Schedule.End.Format(time.RFC3339))
}
