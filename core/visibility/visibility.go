// Package visibility computes when tiles can be observed from a telescope
// site.
package visibility

import (
	"context"
	"time"

	"github.com/kilianp07/skyplan/core/model"
)

// Oracle returns the intervals within [start, end) during which a tile is
// observable by a telescope. Intervals are ordered, non-overlapping and may
// be empty.
type Oracle interface {
	Window(ctx context.Context, tile model.Tile, prof model.TelescopeProfile, start, end time.Time) (model.VisibilityWindow, error)
}

// clip restricts intervals to [start, end) and merges them.
func clip(ivs []model.Interval, start, end time.Time) []model.Interval {
	out := make([]model.Interval, 0, len(ivs))
	for _, iv := range ivs {
		if iv.Start.Before(start) {
			iv.Start = start
		}
		if iv.End.After(end) {
			iv.End = end
		}
		out = append(out, iv)
	}
	return model.MergeIntervals(out)
}

// Static serves precomputed windows keyed by telescope and tile id. Tiles
// without an entry get Default.
type Static struct {
	Windows map[string][]model.Interval
	Default []model.Interval
}

// NewStatic returns an empty Static oracle.
func NewStatic() *Static {
	return &Static{Windows: map[string][]model.Interval{}}
}

// Set stores the intervals of one tile for one telescope.
func (s *Static) Set(telescope, tile string, ivs ...model.Interval) {
	s.Windows[telescope+"/"+tile] = ivs
}

func (s *Static) Window(_ context.Context, tile model.Tile, prof model.TelescopeProfile, start, end time.Time) (model.VisibilityWindow, error) {
	ivs, ok := s.Windows[prof.ID+"/"+tile.ID]
	if !ok {
		ivs = s.Default
	}
	return model.VisibilityWindow{TileID: tile.ID, TelescopeID: prof.ID, Intervals: clip(ivs, start, end)}, nil
}
