package model

import (
	"slices"
	"time"
)

// TelescopeSummary aggregates one telescope's share of a plan.
type TelescopeSummary struct {
	Exposures    int           `json:"exposures"`
	Tiles        int           `json:"tiles"`
	ExposureTime time.Duration `json:"exposure_time"`
	Budget       time.Duration `json:"budget"`
	Utilization  float64       `json:"utilization"`
	Probability  float64       `json:"probability"`
}

// Summary reports what a plan achieves.
type Summary struct {
	ProbabilityCaptured float64                     `json:"probability_captured"`
	Entries             int                         `json:"entries"`
	Missed              int                         `json:"missed"`
	PerTelescope        map[string]TelescopeSummary `json:"per_telescope"`
}

// Summarize computes captured probability as the mass of the union of cells
// of every tile with at least one exposure, so overlapping tiles are not
// counted twice. budgets gives each telescope's available time.
func Summarize(plan CoveragePlan, tiles []Tile, g *ProbabilityGrid, budgets map[string]time.Duration) Summary {
	byKey := make(map[string]*Tile, len(tiles))
	for i := range tiles {
		byKey[tiles[i].Key()] = &tiles[i]
	}
	s := Summary{Entries: len(plan.Entries), Missed: len(plan.Missed), PerTelescope: map[string]TelescopeSummary{}}
	observed := map[string]bool{}
	telCells := map[string][]int{}
	var all []int
	for _, e := range plan.Entries {
		ts := s.PerTelescope[e.TelescopeID]
		ts.Exposures++
		ts.ExposureTime += e.End.Sub(e.Start)
		key := e.TelescopeID + "/" + e.TileID
		if !observed[key] {
			observed[key] = true
			ts.Tiles++
			if t, ok := byKey[key]; ok {
				telCells[e.TelescopeID] = append(telCells[e.TelescopeID], t.Cells...)
				all = append(all, t.Cells...)
			}
		}
		s.PerTelescope[e.TelescopeID] = ts
	}
	for id, b := range budgets {
		ts := s.PerTelescope[id]
		ts.Budget = b
		if b > 0 {
			ts.Utilization = float64(ts.ExposureTime) / float64(b)
		}
		s.PerTelescope[id] = ts
	}
	if g == nil {
		return s
	}
	for id, cells := range telCells {
		ts := s.PerTelescope[id]
		ts.Probability = g.Mass(unique(cells))
		s.PerTelescope[id] = ts
	}
	s.ProbabilityCaptured = g.Mass(unique(all))
	return s
}

func unique(cells []int) []int {
	cs := slices.Clone(cells)
	slices.Sort(cs)
	return slices.Compact(cs)
}
