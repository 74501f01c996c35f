package tiling

import (
	"math"
	"sort"

	"github.com/kilianp07/skyplan/core/model"
	"github.com/kilianp07/skyplan/core/sky"
)

type weighted struct {
	src Source
	w   float64
}

// catalog anchors tiles on catalog sources weighted by the probability of
// their cell times grade^CatalogExponent. Sources are taken by descending
// weight, skipping any closer than MinSeparation to one already chosen.
func (t tiler) catalog() []model.Tile {
	hp := t.g.HEALPix()
	minSep := t.params.MinSeparation
	if minSep == 0 {
		minSep = t.prof.FOV.BoundingRadius()
	}
	cands := make([]weighted, 0, len(t.params.Catalog))
	for _, s := range t.params.Catalog {
		if s.Grade <= 0 || math.IsNaN(s.Grade) {
			continue
		}
		w := t.g.Prob(hp.Pixel(s.RA, s.Dec)) * math.Pow(s.Grade, t.params.CatalogExponent)
		if w > 0 && t.params.allowed(s.ID, s.RA, s.Dec) {
			cands = append(cands, weighted{src: s, w: w})
		}
	}
	sort.SliceStable(cands, func(a, b int) bool {
		if cands[a].w != cands[b].w {
			return cands[a].w > cands[b].w
		}
		return cands[a].src.ID < cands[b].src.ID
	})
	var tiles []model.Tile
	for _, c := range cands {
		if t.capped(len(tiles)) {
			break
		}
		near := false
		for _, tl := range tiles {
			if sky.Separation(tl.CenterRA, tl.CenterDec, c.src.RA, c.src.Dec) < minSep {
				near = true
				break
			}
		}
		if !near {
			tiles = append(tiles, t.tile(c.src.ID, c.src.RA, c.src.Dec))
		}
	}
	return tiles
}
