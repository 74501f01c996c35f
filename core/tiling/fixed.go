package tiling

import (
	"sort"

	"github.com/kilianp07/skyplan/core/model"
	"github.com/kilianp07/skyplan/core/sky"
)

func (t tiler) pointings() []sky.Pointing {
	if len(t.params.Tessellation) > 0 {
		return t.params.Tessellation
	}
	return sky.SpiralTessellation(t.prof.FOV)
}

// fixed computes the exact mass of every tessellation pointing and keeps
// those that cover any probability, in tessellation order.
func (t tiler) fixed() []model.Tile {
	var out []model.Tile
	for _, pt := range t.pointings() {
		if !t.params.allowed(pt.ID, pt.RA, pt.Dec) {
			continue
		}
		tl := t.tile(pt.ID, pt.RA, pt.Dec)
		if tl.ProbabilityMass > 0 {
			out = append(out, tl)
		}
	}
	return out
}

// ranked orders the tessellation by mass and keeps the prefix reaching the
// coverage target or the tile cap.
func (t tiler) ranked() []model.Tile {
	return t.prefix(t.fixed())
}

// prefix sorts tiles by descending mass, keeping input order among equals,
// and cuts once the cumulative mass reaches the target or the cap binds.
func (t tiler) prefix(tiles []model.Tile) []model.Tile {
	sort.SliceStable(tiles, func(a, b int) bool {
		return tiles[a].ProbabilityMass > tiles[b].ProbabilityMass
	})
	target := t.target()
	var sum float64
	for i, tl := range tiles {
		if t.capped(i) || sum >= target {
			return tiles[:i]
		}
		sum += tl.ProbabilityMass
	}
	return tiles
}
