package tiling

import (
	"fmt"
	"math"

	"github.com/kilianp07/skyplan/core/model"
	"github.com/kilianp07/skyplan/core/sky"
)

// hierarchicalOrder is the shallowest order whose pixel size is closest to
// the side of the field of view, never deeper than the grid itself.
func hierarchicalOrder(native int, fov sky.Shape) int {
	side := math.Sqrt(fov.Area())
	order := 0
	for order < native {
		cur := math.Abs(sky.AtOrder(order).PixelSize() - side)
		next := math.Abs(sky.AtOrder(order+1).PixelSize() - side)
		if next >= cur {
			break
		}
		order++
	}
	return order
}

// hierarchical uses the pixels of the matching order as tiles. Each tile
// holds exactly the native descendants of its pixel, so tiles never overlap.
func (t tiler) hierarchical() []model.Tile {
	native := t.g.HEALPix().Order()
	hp := sky.AtOrder(hierarchicalOrder(native, t.prof.FOV))
	var tiles []model.Tile
	for pix := 0; pix < hp.NPix(); pix++ {
		lo, hi := hp.Descendants(pix, native)
		var mass float64
		for c := lo; c < hi; c++ {
			mass += t.g.Prob(c)
		}
		if mass <= 0 {
			continue
		}
		id := fmt.Sprintf("h%d-%d", hp.Order(), pix)
		ra, dec := hp.Center(pix)
		if !t.params.allowed(id, ra, dec) {
			continue
		}
		cells := make([]int, 0, hi-lo)
		for c := lo; c < hi; c++ {
			cells = append(cells, c)
		}
		tiles = append(tiles, model.NewTile(id, t.prof.ID, ra, dec, t.prof.FOV, t.g, cells))
	}
	return t.prefix(tiles)
}
