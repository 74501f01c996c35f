// Package allocation assigns exposure counts and durations to tiles within a
// telescope's time budget.
package allocation

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/skyplan/core/model"
)

// Law selects how tile weights are turned into exposure counts.
type Law string

const (
	// PowerLaw weights tiles by mass^Exponent * distance^DistanceExponent and
	// rounds the normalized share of the budget to whole exposures.
	PowerLaw Law = "powerlaw"
	// Uniform gives every tile with probability the same weight.
	Uniform Law = "uniform"
	// LP maximizes the weighted exposure count with a linear program.
	LP Law = "lp"
)

// Params tunes the allocation of one telescope.
type Params struct {
	Profile model.TelescopeProfile `json:"-"`
	// Grid supplies distance data for the distance factor; optional.
	Grid *model.ProbabilityGrid `json:"-"`

	Exponent         float64 `json:"exponent"`
	DistanceExponent float64 `json:"distance_exponent"`
	// MinSignificance is the normalized weight above which a tile rounded
	// down to zero exposures still gets one.
	MinSignificance float64 `json:"min_significance"`
	// MaxTiles overrides the profile's tile cap when positive.
	MaxTiles int `json:"max_tiles"`
	// Balanced varies exposure duration per tile instead of count.
	Balanced bool `json:"balanced"`
	// MinRevisitGapSec separates repeated exposures of one tile.
	MinRevisitGapSec float64 `json:"min_revisit_gap_sec"`
}

// SetDefaults fills unset knobs.
func (p *Params) SetDefaults() {
	if p.Exponent == 0 {
		p.Exponent = 1
	}
	if p.MinSignificance == 0 {
		p.MinSignificance = 0.001
	}
	if p.MaxTiles == 0 {
		p.MaxTiles = p.Profile.MaxTiles
	}
}

// Allocate returns a copy of tiles with an Allocation attached to each. Tiles
// that receive no exposure carry a zero count and are skipped by the
// scheduler. The summed exposure time never exceeds budget.
func Allocate(tiles []model.Tile, budget time.Duration, law Law, p Params) ([]model.Tile, error) {
	p.SetDefaults()
	if budget < 0 {
		return nil, model.Invalid(p.Profile.ID, "negative budget %v", budget)
	}
	dur := p.Profile.BaseExposure()
	if dur < model.MinExposure {
		return nil, model.Invalid(p.Profile.ID, "exposure time %v below %v", dur, model.MinExposure)
	}
	if p.MaxTiles < 0 || p.MinSignificance < 0 || p.MinRevisitGapSec < 0 {
		return nil, model.Invalid(p.Profile.ID, "negative allocation parameter")
	}

	out := make([]model.Tile, len(tiles))
	copy(out, tiles)

	var w []float64
	switch law {
	case PowerLaw, LP:
		w = powerWeights(out, p)
	case Uniform:
		w = make([]float64, len(out))
		for i, t := range out {
			if t.ProbabilityMass > 0 {
				w[i] = 1
			}
		}
	default:
		return nil, model.Invalid(p.Profile.ID, "unknown allocation law %q", law)
	}

	order := byWeight(w)
	if p.MaxTiles > 0 && len(order) > p.MaxTiles {
		for _, i := range order[p.MaxTiles:] {
			w[i] = 0
		}
		order = order[:p.MaxTiles]
	}

	a := allocator{tiles: out, w: w, order: order, budget: budget, dur: dur, p: p}
	counts := make([]int, len(out))
	durs := make([]time.Duration, len(out))
	for i := range durs {
		durs[i] = dur
	}
	if budget > 0 && floats.Sum(w) > 0 {
		switch {
		case p.Balanced:
			counts, durs = a.balanced()
		case law == LP:
			counts = a.linear()
		default:
			counts = a.rounded()
		}
	}
	a.fit(counts, durs)

	gap := seconds(p.MinRevisitGapSec)
	for i := range out {
		al := &model.Allocation{
			TileID:           out[i].ID,
			ExposureCount:    counts[i],
			ExposureDuration: durs[i],
			FilterSequence:   p.Profile.FilterSequence(counts[i]),
		}
		if counts[i] > 1 {
			al.MinRevisitGap = gap
		}
		out[i].Allocation = al
	}
	return out, nil
}

type allocator struct {
	tiles  []model.Tile
	w      []float64
	order  []int
	budget time.Duration
	dur    time.Duration
	p      Params
}

func powerWeights(tiles []model.Tile, p Params) []float64 {
	w := make([]float64, len(tiles))
	var mean float64
	useDist := p.DistanceExponent != 0 && p.Grid != nil && p.Grid.HasDistance()
	if useDist {
		mean = p.Grid.MeanDistance(nil)
	}
	for i, t := range tiles {
		if t.ProbabilityMass <= 0 {
			continue
		}
		w[i] = math.Pow(t.ProbabilityMass, p.Exponent)
		if useDist && mean > 0 {
			if d := p.Grid.MeanDistance(t.Cells); d > 0 {
				w[i] *= math.Pow(d/mean, p.DistanceExponent)
			}
		}
	}
	return w
}

// byWeight returns the indices of positive weights, heaviest first and in
// input order among equals.
func byWeight(w []float64) []int {
	var idx []int
	for i, v := range w {
		if v > 0 {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return w[idx[a]] > w[idx[b]] })
	return idx
}

func (a allocator) normalized() []float64 {
	wn := make([]float64, len(a.w))
	copy(wn, a.w)
	floats.Scale(1/floats.Sum(wn), wn)
	return wn
}

func (a allocator) maxExposures() int {
	return a.p.Profile.MaxExposures()
}

// rounded converts each normalized weight into round(wn*budget/duration)
// exposures, with a floor of one for significant tiles.
func (a allocator) rounded() []int {
	wn := a.normalized()
	counts := make([]int, len(a.w))
	for _, i := range a.order {
		c := int(math.Round(wn[i] * float64(a.budget) / float64(a.dur)))
		if c == 0 && wn[i] > a.p.MinSignificance {
			c = 1
		}
		if m := a.maxExposures(); m > 0 && c > m {
			c = m
		}
		counts[i] = c
	}
	return counts
}

// balanced gives every kept tile the same number of exposures and scales the
// duration with its weight. Tiles whose share falls below one base exposure
// are dropped, lightest first, and the rest renormalized.
func (a allocator) balanced() ([]int, []time.Duration) {
	n := 1
	if a.p.Profile.AlternateFilters {
		n = len(a.p.Profile.Filters)
	}
	if m := a.p.Profile.MaxFilterSets; m > 1 {
		n *= m
	}
	counts := make([]int, len(a.w))
	durs := make([]time.Duration, len(a.w))
	for i := range durs {
		durs[i] = a.dur
	}
	kept := a.order
	for len(kept) > 0 {
		var sum float64
		for _, i := range kept {
			sum += a.w[i]
		}
		lightest := kept[len(kept)-1]
		share := time.Duration(a.w[lightest] / sum * float64(a.budget) / float64(n))
		if share >= a.dur {
			for _, i := range kept {
				counts[i] = n
				d := time.Duration(a.w[i] / sum * float64(a.budget) / float64(n))
				durs[i] = d.Truncate(time.Millisecond)
			}
			return counts, durs
		}
		kept = kept[:len(kept)-1]
	}
	return counts, durs
}

// fit enforces the budget by removing exposures from the lightest tiles
// first.
func (a allocator) fit(counts []int, durs []time.Duration) {
	var total time.Duration
	for i, c := range counts {
		total += time.Duration(c) * durs[i]
	}
	for k := len(a.order) - 1; k >= 0 && total > a.budget; k-- {
		i := a.order[k]
		for counts[i] > 0 && total > a.budget {
			counts[i]--
			total -= durs[i]
		}
	}
}

func seconds(s float64) time.Duration {
	if ns := s * float64(time.Second); ns < float64(model.MaxDuration) {
		return time.Duration(math.Round(ns))
	}
	return model.MaxDuration
}
