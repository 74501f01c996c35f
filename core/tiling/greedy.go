package tiling

import (
	"fmt"

	"github.com/kilianp07/skyplan/core/model"
	"github.com/kilianp07/skyplan/core/sky"
)

// improveEps is the smallest mass gain that counts as an improving move.
const improveEps = 1e-12

// ring is the set of unit offsets tried around a seed cell, seed first.
var ring = [][2]float64{
	{0, 0},
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{0.7071, 0.7071}, {-0.7071, 0.7071}, {0.7071, -0.7071}, {-0.7071, -0.7071},
}

// greedy seeds a tile on the most probable uncovered cell and centers it,
// among the ring candidates that still contain the seed, where it captures
// the most uncovered probability. Equal-probability seeds are taken in
// ascending cell id. A tile is named after its seed cell so telescopes
// sharing a grid agree on the id of a tile seeded on the same cell.
func (t tiler) greedy() []model.Tile {
	hp := t.g.HEALPix()
	r := t.prof.FOV.BoundingRadius()
	step := r / 2
	covered := make([]bool, t.g.Len())
	target := t.target()
	var (
		tiles []model.Tile
		got   float64
	)
	ranked := t.g.Ranked()
	for next := 0; next < len(ranked); next++ {
		if t.capped(len(tiles)) || got >= target {
			break
		}
		seed := ranked[next]
		if covered[seed] {
			continue
		}
		sra, sdec := hp.Center(seed)
		sv := hp.CenterVec(seed)
		id := fmt.Sprintf("g%d-%d", hp.Order(), seed)
		var (
			best     []int
			bestGain = -1.0
			bra      float64
			bdec     float64
		)
		for _, o := range ring {
			ra, dec := sky.Offset(sra, sdec, o[0]*step, o[1]*step)
			if !t.params.allowed(id, ra, dec) {
				continue
			}
			fp := t.prof.FOV.At(ra, dec)
			if !fp.Contains(sv) {
				continue
			}
			cells := Members(t.g, fp)
			gain := t.uncovered(cells, covered)
			if gain > bestGain {
				best, bestGain, bra, bdec = cells, gain, ra, dec
			}
		}
		if best == nil {
			// no admissible pointing for this seed
			covered[seed] = true
			continue
		}
		for _, c := range best {
			covered[c] = true
		}
		got += bestGain
		tiles = append(tiles, model.NewTile(id, t.prof.ID, bra, bdec, t.prof.FOV, t.g, best))
	}
	if t.params.Perturbative {
		t.perturb(tiles)
	}
	return tiles
}

func (t tiler) uncovered(cells []int, covered []bool) float64 {
	var m float64
	for _, c := range cells {
		if !covered[c] {
			m += t.g.Prob(c)
		}
	}
	return m
}

// perturbOffsets spans a 5x5 grid of +-1/2 footprint radius in quarter steps.
var perturbOffsets = func() [][2]float64 {
	var out [][2]float64
	for _, dy := range []float64{0, -0.25, 0.25, -0.5, 0.5} {
		for _, dx := range []float64{0, -0.25, 0.25, -0.5, 0.5} {
			out = append(out, [2]float64{dx, dy})
		}
	}
	return out
}()

// perturb re-centers each tile in turn within the offset grid around its
// placed center, scoring a position by the probability no other tile covers.
// Only strictly improving moves are taken; the first best offset wins ties.
func (t tiler) perturb(tiles []model.Tile) {
	r := t.prof.FOV.BoundingRadius()
	count := make([]int, t.g.Len())
	for _, tl := range tiles {
		for _, c := range tl.Cells {
			count[c]++
		}
	}
	unique := func(cells []int) float64 {
		var m float64
		for _, c := range cells {
			if count[c] == 0 {
				m += t.g.Prob(c)
			}
		}
		return m
	}
	for i := range tiles {
		tl := &tiles[i]
		for _, c := range tl.Cells {
			count[c]--
		}
		cur := unique(tl.Cells)
		best, bra, bdec := tl.Cells, tl.CenterRA, tl.CenterDec
		for _, o := range perturbOffsets[1:] {
			ra, dec := sky.Offset(tl.CenterRA, tl.CenterDec, o[0]*r, o[1]*r)
			if !t.params.allowed(tl.ID, ra, dec) {
				continue
			}
			cells := Members(t.g, t.prof.FOV.At(ra, dec))
			if gain := unique(cells); gain > cur+improveEps {
				cur, best, bra, bdec = gain, cells, ra, dec
			}
		}
		if bra != tl.CenterRA || bdec != tl.CenterDec {
			tl.CenterRA, tl.CenterDec = sky.NormRA(bra), bdec
			tl.SetCells(t.g, best)
		}
		for _, c := range tl.Cells {
			count[c]++
		}
	}
}
