package tiling

import (
	"github.com/kilianp07/skyplan/core/model"
	"github.com/kilianp07/skyplan/core/sky"
)

// Members returns, in ascending order, the native cells of g whose centers
// fall inside fp. The search descends the nested hierarchy from the twelve
// base pixels and prunes branches that cannot reach the footprint. A
// footprint too small to hold any cell center is given the cell under its
// pointing.
func Members(g *model.ProbabilityGrid, fp sky.Footprint) []int {
	if fp.Radius() <= 0 {
		return nil
	}
	native := g.HEALPix()
	center := fp.CenterVec()
	var out []int
	var walk func(order, pix int)
	walk = func(order, pix int) {
		hp := sky.AtOrder(order)
		v := hp.CenterVec(pix)
		if order == native.Order() {
			if fp.Contains(v) {
				out = append(out, pix)
			}
			return
		}
		if sky.Angle(center, v) > fp.Radius()+hp.MaxPixelRadius() {
			return
		}
		for _, c := range hp.Children(pix) {
			walk(order+1, c)
		}
	}
	for pix := 0; pix < 12; pix++ {
		walk(0, pix)
	}
	if len(out) == 0 {
		ra, dec := fp.Center()
		out = append(out, native.Pixel(ra, dec))
	}
	return out
}
