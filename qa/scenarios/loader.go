// Package scenarios runs declarative planning scenarios end to end through
// the planner with a static visibility oracle.
package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/skyplan/core/factory"
	"github.com/kilianp07/skyplan/core/model"
	"github.com/kilianp07/skyplan/core/planner"
	"github.com/kilianp07/skyplan/core/sky"
)

// CellDef adds probability to the grid cell containing (RA, Dec).
type CellDef struct {
	RA   float64 `json:"ra"`
	Dec  float64 `json:"dec"`
	Prob float64 `json:"prob"`
}

// WindowDef gives a tile's visibility as [start, end) offsets in seconds from
// the scenario epoch.
type WindowDef struct {
	Telescope string      `json:"telescope"`
	Tile      string      `json:"tile"`
	Intervals [][]float64 `json:"intervals"`
}

// Expected lists the checks applied to the plan. Unset fields are skipped.
type Expected struct {
	Tiles          map[string]int `json:"tiles"`
	Entries        *int           `json:"entries"`
	Starts         []float64      `json:"starts"`
	Missed         map[string]int `json:"missed"`
	Excluded       []string       `json:"excluded"`
	MinProbability float64        `json:"min_probability"`
	Error          string         `json:"error"`
}

// Scenario is one planning situation and what the plan must look like.
type Scenario struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Nside       int                       `json:"nside"`
	Cells       []CellDef                 `json:"cells"`
	Telescopes  []planner.TelescopeConfig `json:"telescopes"`
	// Tessellations supplies fixed pointings per telescope id.
	Tessellations map[string][]sky.Pointing `json:"tessellations"`
	DurationSec   float64                   `json:"duration_sec"`
	Ordering      string                    `json:"ordering"`
	Exclusive     bool                      `json:"exclusive"`
	Threshold     float64                   `json:"observability_threshold"`
	Iterative     bool                      `json:"iterative_tiling"`
	Windows       []WindowDef               `json:"windows"`
	// Blind telescopes see nothing; every other tile without a window is
	// visible for the whole scenario.
	Blind    []string `json:"blind"`
	Expected Expected `json:"expected"`
}

// Load reads a YAML scenario. Keys follow the json names used by the
// planner configuration.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var sc Scenario
	if err := factory.Decode(raw, &sc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Nside == 0 {
		sc.Nside = 64
	}
	if sc.DurationSec == 0 {
		sc.DurationSec = 3600
	}
	return &sc, nil
}

// Grid builds the probability grid from the cell definitions.
func (sc *Scenario) Grid() (*model.ProbabilityGrid, error) {
	hp, err := sky.NewHEALPix(sc.Nside)
	if err != nil {
		return nil, err
	}
	prob := make([]float64, hp.NPix())
	for _, c := range sc.Cells {
		prob[hp.Pixel(c.RA, c.Dec)] += c.Prob
	}
	return model.NewGrid(sc.Nside, prob, nil)
}
