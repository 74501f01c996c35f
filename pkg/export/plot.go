package export

import (
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/kilianp07/skyplan/core/model"
)

// PlotWidth is the width of coverage plots. Height is half of it to match the
// 360 by 180 degree sky.
const PlotWidth = 12 * vg.Inch

// PlotFormat derives the image format from a file name, png by default.
func PlotFormat(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "png"
	}
	return ext
}

// WritePlot renders the sky map and the observed tile centers of plan in an
// equirectangular RA/Dec frame. Cells darken with probability and each
// telescope gets its own ring color. format is any gonum/plot format such as
// png, svg or pdf.
func WritePlot(w io.Writer, format string, g *model.ProbabilityGrid, plan model.CoveragePlan) error {
	p := plot.New()
	p.Title.Text = "Coverage"
	if plan.RunID != "" {
		p.Title.Text = "Coverage " + plan.RunID
	}
	p.X.Label.Text = "RA (deg)"
	p.Y.Label.Text = "Dec (deg)"
	p.X.Min, p.X.Max = 0, 360
	p.Y.Min, p.Y.Max = -90, 90
	p.Add(plotter.NewGrid())

	if g != nil {
		if err := addCells(p, g); err != nil {
			return fmt.Errorf("plot cells: %w", err)
		}
	}
	if err := addTiles(p, plan.Entries); err != nil {
		return fmt.Errorf("plot tiles: %w", err)
	}
	p.Legend.Top = true
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(PlotWidth, PlotWidth/2, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

func addCells(p *plot.Plot, g *model.ProbabilityGrid) error {
	ids := g.Ranked()
	if len(ids) == 0 {
		return nil
	}
	hp := g.HEALPix()
	pts := make(plotter.XYs, len(ids))
	for i, id := range ids {
		pts[i].X, pts[i].Y = hp.Center(id)
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	peak := g.Prob(ids[0])
	s.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		shade := uint8(230 * (1 - g.Prob(ids[i])/peak))
		return draw.GlyphStyle{
			Color:  color.Gray{Y: shade},
			Radius: vg.Points(1.5),
			Shape:  draw.CircleGlyph{},
		}
	}
	p.Add(s)
	return nil
}

// addTiles draws one ring per observed tile, once however many exposures it
// received.
func addTiles(p *plot.Plot, entries []model.ScheduleEntry) error {
	byTel := map[string]plotter.XYs{}
	seen := map[string]bool{}
	for _, e := range entries {
		key := e.TelescopeID + "/" + e.TileID
		if seen[key] {
			continue
		}
		seen[key] = true
		byTel[e.TelescopeID] = append(byTel[e.TelescopeID], plotter.XY{X: e.RA, Y: e.Dec})
	}
	ids := make([]string, 0, len(byTel))
	for id := range byTel {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for i, id := range ids {
		s, err := plotter.NewScatter(byTel[id])
		if err != nil {
			return err
		}
		s.GlyphStyle = draw.GlyphStyle{
			Color:  plotutil.Color(i),
			Radius: vg.Points(4),
			Shape:  draw.RingGlyph{},
		}
		p.Add(s)
		p.Legend.Add(id, s)
	}
	return nil
}
