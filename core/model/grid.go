package model

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/kilianp07/skyplan/core/sky"
)

// probTolerance is how far above one the total probability may drift from
// rounding in the source map.
const probTolerance = 1e-6

// DistancePDF is the per-pixel distance ansatz of a 3D localization map.
type DistancePDF struct {
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
	Norm  float64 `json:"norm"`
}

// GridCell is one equal-area pixel of the grid.
type GridCell struct {
	ID          int          `json:"id"`
	RA          float64      `json:"ra"`
	Dec         float64      `json:"dec"`
	SolidAngle  float64      `json:"solid_angle"`
	Probability float64      `json:"probability"`
	Distance    *DistancePDF `json:"distance,omitempty"`
}

// ProbabilityGrid is an immutable nested HEALPix map. Cells are addressed by
// their nested pixel index; there are no pointers between cells so the grid
// can be read from any number of goroutines.
type ProbabilityGrid struct {
	hp    sky.HEALPix
	prob  []float64
	dist  []DistancePDF
	total float64
}

// NewGrid validates and copies prob (length 12*nside^2). dist is optional and
// must have the same length when given.
func NewGrid(nside int, prob []float64, dist []DistancePDF) (*ProbabilityGrid, error) {
	hp, err := sky.NewHEALPix(nside)
	if err != nil {
		return nil, Invalid("", "grid: %v", err)
	}
	if len(prob) != hp.NPix() {
		return nil, Invalid("", "grid: %d probabilities for nside %d, want %d", len(prob), nside, hp.NPix())
	}
	if dist != nil && len(dist) != len(prob) {
		return nil, Invalid("", "grid: %d distance entries, want %d", len(dist), len(prob))
	}
	g := &ProbabilityGrid{hp: hp, prob: make([]float64, len(prob))}
	for i, p := range prob {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return nil, Invalid("", "grid: cell %d has probability %v", i, p)
		}
		g.prob[i] = p
		g.total += p
	}
	if g.total > 1+probTolerance {
		return nil, Invalid("", "grid: total probability %.6f exceeds 1", g.total)
	}
	if dist != nil {
		g.dist = append([]DistancePDF(nil), dist...)
	}
	return g, nil
}

func (g *ProbabilityGrid) HEALPix() sky.HEALPix { return g.hp }
func (g *ProbabilityGrid) Nside() int           { return g.hp.Nside() }
func (g *ProbabilityGrid) Len() int             { return len(g.prob) }
func (g *ProbabilityGrid) Total() float64       { return g.total }
func (g *ProbabilityGrid) HasDistance() bool    { return g.dist != nil }

// Prob returns the probability of cell id.
func (g *ProbabilityGrid) Prob(id int) float64 { return g.prob[id] }

// Cell materialises a GridCell record.
func (g *ProbabilityGrid) Cell(id int) GridCell {
	ra, dec := g.hp.Center(id)
	c := GridCell{ID: id, RA: ra, Dec: dec, SolidAngle: g.hp.PixelArea(), Probability: g.prob[id]}
	if g.dist != nil {
		d := g.dist[id]
		c.Distance = &d
	}
	return c
}

// Without returns a copy of g with the given cells at zero probability.
// Distances are shared with g.
func (g *ProbabilityGrid) Without(cells []int) *ProbabilityGrid {
	out := &ProbabilityGrid{hp: g.hp, prob: append([]float64(nil), g.prob...), dist: g.dist}
	for _, c := range cells {
		out.prob[c] = 0
	}
	for _, p := range out.prob {
		out.total += p
	}
	return out
}

// Mass sums the probability of the given cells.
func (g *ProbabilityGrid) Mass(cells []int) float64 {
	var m float64
	for _, c := range cells {
		m += g.prob[c]
	}
	return m
}

// Ranked returns the ids of cells with non-zero probability, most probable
// first and ascending id among equals.
func (g *ProbabilityGrid) Ranked() []int {
	ids := make([]int, 0, len(g.prob))
	for i, p := range g.prob {
		if p > 0 {
			ids = append(ids, i)
		}
	}
	sort.SliceStable(ids, func(a, b int) bool {
		return g.prob[ids[a]] > g.prob[ids[b]]
	})
	return ids
}

// MeanDistance is the probability-weighted mean of the per-cell distance
// location over cells with a usable value, or zero without distance data.
func (g *ProbabilityGrid) MeanDistance(cells []int) float64 {
	if g.dist == nil {
		return 0
	}
	var num, den float64
	add := func(i int) {
		mu := g.dist[i].Mu
		if g.prob[i] <= 0 || mu <= 0 || math.IsInf(mu, 0) || math.IsNaN(mu) {
			return
		}
		num += g.prob[i] * mu
		den += g.prob[i]
	}
	if cells == nil {
		for i := range g.prob {
			add(i)
		}
	} else {
		for _, i := range cells {
			add(i)
		}
	}
	if den == 0 {
		return 0
	}
	return num / den
}

type gridCell struct {
	ID   int     `json:"id"`
	Prob float64 `json:"prob"`
}

type gridFile struct {
	Nside     int        `json:"nside"`
	Prob      []float64  `json:"prob"`
	Cells     []gridCell `json:"cells"`
	DistMu    []float64  `json:"distmu"`
	DistSigma []float64  `json:"distsigma"`
	DistNorm  []float64  `json:"distnorm"`
}

// DecodeGrid reads a JSON grid. Probabilities come either as a dense "prob"
// array in nested order or as sparse "cells"; distance columns are optional.
func DecodeGrid(r io.Reader) (*ProbabilityGrid, error) {
	var f gridFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, Invalid("", "grid: decode: %v", err)
	}
	prob := f.Prob
	if prob == nil {
		if f.Nside <= 0 || f.Nside > 1<<13 {
			return nil, Invalid("", "grid: bad nside %d", f.Nside)
		}
		prob = make([]float64, 12*f.Nside*f.Nside)
		for _, c := range f.Cells {
			if c.ID < 0 || c.ID >= len(prob) {
				return nil, Invalid("", "grid: cell id %d out of range", c.ID)
			}
			prob[c.ID] += c.Prob
		}
	}
	var dist []DistancePDF
	if f.DistMu != nil {
		if len(f.DistSigma) != len(f.DistMu) || len(f.DistNorm) != len(f.DistMu) {
			return nil, Invalid("", "grid: distance columns differ in length")
		}
		dist = make([]DistancePDF, len(f.DistMu))
		for i := range dist {
			dist[i] = DistancePDF{Mu: f.DistMu[i], Sigma: f.DistSigma[i], Norm: f.DistNorm[i]}
		}
	}
	return NewGrid(f.Nside, prob, dist)
}

// LoadGrid reads a JSON grid file.
func LoadGrid(path string) (*ProbabilityGrid, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	g, err := DecodeGrid(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}
