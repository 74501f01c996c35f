// Package tiling turns a probability grid into telescope pointings.
//
// Generate is a pure function of the grid, the telescope profile, the
// strategy and its parameters; the five strategies form a closed set selected
// by Kind.
package tiling

import (
	"math"
	"slices"

	"github.com/kilianp07/skyplan/core/model"
	"github.com/kilianp07/skyplan/core/sky"
)

// Kind selects a tiling strategy.
type Kind string

const (
	Fixed        Kind = "fixed"
	Greedy       Kind = "greedy"
	Ranked       Kind = "ranked"
	Hierarchical Kind = "hierarchical"
	Catalog      Kind = "catalog"
)

// Kinds lists every strategy.
var Kinds = []Kind{Fixed, Greedy, Ranked, Hierarchical, Catalog}

// Valid reports whether k names a strategy.
func (k Kind) Valid() bool { return slices.Contains(Kinds, k) }

// Source is a catalog object that may anchor a tile.
type Source struct {
	ID    string  `json:"id"`
	RA    float64 `json:"ra"`
	Dec   float64 `json:"dec"`
	Grade float64 `json:"grade"`
}

// Params tunes the strategies. Fields a strategy does not use are ignored.
type Params struct {
	// Tessellation holds the pointings for fixed and ranked tiling. When
	// empty a spiral tessellation matching the field of view is generated.
	Tessellation []sky.Pointing `json:"-"`
	// Catalog holds the candidate sources for catalog tiling.
	Catalog []Source `json:"-"`

	// CoverageTarget is the fraction of the grid's probability after which
	// greedy, ranked and hierarchical selection stop.
	CoverageTarget float64 `json:"coverage_target"`
	// MaxTiles overrides the profile's tile cap when positive.
	MaxTiles int `json:"max_tiles"`

	Minimal      bool `json:"minimal"`
	Perturbative bool `json:"perturbative"`

	CatalogExponent float64 `json:"catalog_exponent"`
	// MinSeparation in degrees between catalog tiles; defaults to the
	// footprint radius.
	MinSeparation float64 `json:"min_separation"`

	// ExcludeTiles lists already observed tile ids.
	ExcludeTiles []string `json:"exclude_tiles"`
	// GalacticLimit drops pointings with |b| below it, in degrees.
	GalacticLimit float64 `json:"galactic_limit"`
	// RASlice keeps pointings whose RA in hours is within [lo, hi); lo > hi
	// wraps through 0h.
	RASlice []float64 `json:"ra_slice"`
}

// SetDefaults fills unset knobs.
func (p *Params) SetDefaults() {
	if p.CoverageTarget == 0 {
		p.CoverageTarget = 0.9
	}
	if p.CatalogExponent == 0 {
		p.CatalogExponent = 1
	}
}

// Validate reports malformed parameters.
func (p Params) Validate() error {
	if p.CoverageTarget < 0 || p.CoverageTarget > 1 {
		return model.Invalid("", "tiling: coverage target %v outside [0,1]", p.CoverageTarget)
	}
	if p.MaxTiles < 0 || p.MinSeparation < 0 || p.GalacticLimit < 0 {
		return model.Invalid("", "tiling: negative parameter")
	}
	if p.RASlice != nil && len(p.RASlice) != 2 {
		return model.Invalid("", "tiling: ra_slice needs two bounds")
	}
	return nil
}

func (p Params) allowed(id string, ra, dec float64) bool {
	if id != "" && slices.Contains(p.ExcludeTiles, id) {
		return false
	}
	if p.GalacticLimit > 0 && math.Abs(sky.GalacticLatitude(ra, dec)) < p.GalacticLimit {
		return false
	}
	if len(p.RASlice) == 2 {
		h := sky.NormRA(ra) / 15
		lo, hi := p.RASlice[0], p.RASlice[1]
		if lo <= hi {
			return h >= lo && h < hi
		}
		return h >= lo || h < hi
	}
	return true
}

// Generate runs one strategy for one telescope. It returns model.ErrNoCoverage
// (wrapped in a *model.Error) with an empty set when nothing can be placed.
func Generate(g *model.ProbabilityGrid, prof model.TelescopeProfile, kind Kind, params Params) ([]model.Tile, error) {
	params.SetDefaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if g.Total() <= 0 {
		return nil, model.NoCoverage(prof.ID, "grid has zero total probability")
	}
	if prof.FOV.Area() <= 0 || prof.FOV.BoundingRadius() <= 0 {
		return nil, model.NoCoverage(prof.ID, "field of view has zero area")
	}
	if params.MaxTiles == 0 {
		params.MaxTiles = prof.MaxTiles
	}
	t := tiler{g: g, prof: prof, params: params}
	var tiles []model.Tile
	switch kind {
	case Fixed:
		tiles = t.fixed()
	case Greedy:
		tiles = t.greedy()
	case Ranked:
		tiles = t.ranked()
	case Hierarchical:
		tiles = t.hierarchical()
	case Catalog:
		tiles = t.catalog()
	default:
		return nil, model.Invalid(prof.ID, "tiling: unknown strategy %q", kind)
	}
	if params.Minimal {
		tiles = minimal(tiles)
	}
	if len(tiles) == 0 {
		return nil, model.NoCoverage(prof.ID, "%s tiling placed no tile", kind)
	}
	return tiles, nil
}

type tiler struct {
	g      *model.ProbabilityGrid
	prof   model.TelescopeProfile
	params Params
}

func (t tiler) tile(id string, ra, dec float64) model.Tile {
	cells := Members(t.g, t.prof.FOV.At(ra, dec))
	return model.NewTile(id, t.prof.ID, ra, dec, t.prof.FOV, t.g, cells)
}

func (t tiler) capped(n int) bool {
	return t.params.MaxTiles > 0 && n >= t.params.MaxTiles
}

func (t tiler) target() float64 {
	return t.params.CoverageTarget * t.g.Total()
}

// minimal drops tiles whose cells are all covered by earlier kept tiles.
func minimal(tiles []model.Tile) []model.Tile {
	seen := map[int]bool{}
	kept := tiles[:0]
	for _, tl := range tiles {
		fresh := false
		for _, c := range tl.Cells {
			if !seen[c] {
				fresh = true
				break
			}
		}
		if !fresh {
			continue
		}
		for _, c := range tl.Cells {
			seen[c] = true
		}
		kept = append(kept, tl)
	}
	return kept
}
