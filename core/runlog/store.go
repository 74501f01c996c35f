// Package runlog keeps an append-only history of planning runs.
package runlog

import (
	"context"
	"time"

	"github.com/kilianp07/skyplan/core/model"
)

// Record captures one planning run and what it achieved.
type Record struct {
	RunID      string             `json:"run_id"`
	Timestamp  time.Time          `json:"timestamp"`
	Nside      int                `json:"nside"`
	Telescopes []string           `json:"telescopes"`
	Summary    model.Summary      `json:"summary"`
	Missed     []model.MissedTile `json:"missed,omitempty"`
	Excluded   []model.Exclusion  `json:"excluded,omitempty"`
	DurationMS int64              `json:"duration_ms"`
}

// Query filters records. Zero values match everything.
type Query struct {
	RunID          string
	Start          time.Time
	End            time.Time
	TelescopeID    string
	MinProbability float64
}

// Match reports whether rec passes the filters.
func (q Query) Match(rec Record) bool {
	if q.RunID != "" && rec.RunID != q.RunID {
		return false
	}
	if !q.Start.IsZero() && rec.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && rec.Timestamp.After(q.End) {
		return false
	}
	if rec.Summary.ProbabilityCaptured < q.MinProbability {
		return false
	}
	if q.TelescopeID == "" {
		return true
	}
	for _, id := range rec.Telescopes {
		if id == q.TelescopeID {
			return true
		}
	}
	return false
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
