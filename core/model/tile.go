package model

import (
	"slices"
	"time"

	"github.com/kilianp07/skyplan/core/sky"
)

// TileStatus tracks what the scheduler did with a tile.
type TileStatus string

const (
	TilePending   TileStatus = ""
	TileScheduled TileStatus = "scheduled"
	TilePartial   TileStatus = "partial"
	TileMissed    TileStatus = "missed"
)

// Allocation is the observing time assigned to one tile.
type Allocation struct {
	TileID           string        `json:"tile_id"`
	ExposureCount    int           `json:"exposure_count"`
	ExposureDuration time.Duration `json:"exposure_duration"`
	FilterSequence   []string      `json:"filter_sequence"`
	// MinRevisitGap separates consecutive exposures of the tile.
	MinRevisitGap time.Duration `json:"min_revisit_gap,omitempty"`
}

// Total is the exposure time the allocation consumes.
func (a Allocation) Total() time.Duration {
	return time.Duration(a.ExposureCount) * a.ExposureDuration
}

// Filter returns the filter of the k-th exposure.
func (a Allocation) Filter(k int) string {
	if len(a.FilterSequence) == 0 {
		return ""
	}
	return a.FilterSequence[k%len(a.FilterSequence)]
}

// Tile is one telescope pointing with the grid cells it covers.
type Tile struct {
	ID              string      `json:"id"`
	Telescope       string      `json:"telescope"`
	CenterRA        float64     `json:"ra"`
	CenterDec       float64     `json:"dec"`
	Shape           sky.Shape   `json:"fov"`
	Cells           []int       `json:"cells"`
	ProbabilityMass float64     `json:"probability"`
	Allocation      *Allocation `json:"allocation,omitempty"`
	Status          TileStatus  `json:"status,omitempty"`
}

// NewTile builds a tile and computes its mass from g.
func NewTile(id, telescope string, ra, dec float64, shape sky.Shape, g *ProbabilityGrid, cells []int) Tile {
	t := Tile{ID: id, Telescope: telescope, CenterRA: sky.NormRA(ra), CenterDec: dec, Shape: shape}
	t.SetCells(g, cells)
	return t
}

// SetCells replaces the membership with a sorted, de-duplicated copy of cells
// and recomputes the probability mass.
func (t *Tile) SetCells(g *ProbabilityGrid, cells []int) {
	cs := slices.Clone(cells)
	slices.Sort(cs)
	t.Cells = slices.Compact(cs)
	t.ProbabilityMass = g.Mass(t.Cells)
}

// Footprint places the tile's shape on the sky.
func (t Tile) Footprint() sky.Footprint {
	return t.Shape.At(t.CenterRA, t.CenterDec)
}

// Key identifies a tile across telescopes.
func (t Tile) Key() string { return t.Telescope + "/" + t.ID }
