package model

import (
	"sort"
	"time"
)

// Interval is the half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }
func (i Interval) Empty() bool             { return !i.End.After(i.Start) }

// Covers reports whether [start, end) lies within the interval.
func (i Interval) Covers(start, end time.Time) bool {
	return !start.Before(i.Start) && !end.After(i.End)
}

// MergeIntervals sorts ivs and merges overlapping or touching ranges,
// dropping empty ones.
func MergeIntervals(ivs []Interval) []Interval {
	out := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if !iv.Empty() {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Start.Before(out[b].Start) })
	merged := out[:0]
	for _, iv := range out {
		if n := len(merged); n > 0 && !iv.Start.After(merged[n-1].End) {
			if iv.End.After(merged[n-1].End) {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// VisibilityWindow lists when a tile is observable by a telescope.
type VisibilityWindow struct {
	TileID      string     `json:"tile_id"`
	TelescopeID string     `json:"telescope_id"`
	Intervals   []Interval `json:"intervals"`
}

// Fit returns the earliest start s >= t such that [s, s+d) lies inside one
// interval and ends no later than deadline.
func (w VisibilityWindow) Fit(t time.Time, d time.Duration, deadline time.Time) (time.Time, bool) {
	for _, iv := range w.Intervals {
		s := iv.Start
		if t.After(s) {
			s = t
		}
		e := s.Add(d)
		if e.After(deadline) {
			return time.Time{}, false
		}
		if !e.After(iv.End) {
			return s, true
		}
	}
	return time.Time{}, false
}

// Covers reports whether [start, end) lies inside a single interval.
func (w VisibilityWindow) Covers(start, end time.Time) bool {
	for _, iv := range w.Intervals {
		if iv.Covers(start, end) {
			return true
		}
	}
	return false
}

// Total is the summed length of the intervals.
func (w VisibilityWindow) Total() time.Duration {
	var d time.Duration
	for _, iv := range w.Intervals {
		d += iv.Duration()
	}
	return d
}

// ScheduleEntry is one exposure. The slew that precedes it is reported but is
// not part of [Start, End).
type ScheduleEntry struct {
	TelescopeID string        `json:"telescope_id"`
	TileID      string        `json:"tile_id"`
	Start       time.Time     `json:"start"`
	End         time.Time     `json:"end"`
	Filter      string        `json:"filter"`
	Slew        time.Duration `json:"slew"`
	RA          float64       `json:"ra"`
	Dec         float64       `json:"dec"`
}

// Reason explains why an allocation was not (fully) scheduled.
type Reason string

const (
	ReasonWindowClosed    Reason = "WindowClosed"
	ReasonBudgetExhausted Reason = "BudgetExhausted"
	ReasonReservedByOther Reason = "ReservedByOther"
)

// MissedTile records exposures that could not be scheduled.
type MissedTile struct {
	TileID      string `json:"tile_id"`
	TelescopeID string `json:"telescope_id"`
	Reason      Reason `json:"reason"`
	Remaining   int    `json:"remaining"`
}

// State is a telescope's scheduling state.
type State string

const (
	StateReady     State = "READY"
	StateSelecting State = "SELECTING"
	StateSlewing   State = "SLEWING"
	StateExposing  State = "EXPOSING"
	StateExhausted State = "EXHAUSTED"
	StateDone      State = "DONE"
)

// Terminal reports whether no further transitions happen.
func (s State) Terminal() bool { return s == StateExhausted || s == StateDone }

// Exclusion records a telescope left out of the run.
type Exclusion struct {
	TelescopeID string    `json:"telescope_id"`
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
}

// CoveragePlan is the terminal output of a run.
type CoveragePlan struct {
	RunID    string           `json:"run_id,omitempty"`
	Entries  []ScheduleEntry  `json:"entries"`
	Missed   []MissedTile     `json:"missed"`
	Excluded []Exclusion      `json:"excluded,omitempty"`
	States   map[string]State `json:"states"`
}

// EntriesFor returns the entries of one telescope in time order.
func (p CoveragePlan) EntriesFor(telescope string) []ScheduleEntry {
	var out []ScheduleEntry
	for _, e := range p.Entries {
		if e.TelescopeID == telescope {
			out = append(out, e)
		}
	}
	return out
}
