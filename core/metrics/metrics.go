package metrics

import (
	"time"

	"github.com/kilianp07/skyplan/core/model"
)

// PlanRecord summarizes one completed planning run.
type PlanRecord struct {
	RunID    string
	Summary  model.Summary
	Missed   []model.MissedTile
	Excluded []model.Exclusion
	Duration time.Duration
	Time     time.Time
}

// MetricsSink receives a record for every plan produced.
type MetricsSink interface {
	RecordPlan(PlanRecord) error
}

// StageEvent reports the latency of one pipeline stage for one telescope.
// Stage is one of "tiling", "allocation", "visibility" or "scheduling".
type StageEvent struct {
	RunID       string
	Stage       string
	TelescopeID string
	Duration    time.Duration
	Err         string
	Time        time.Time
}

// StageRecorder can record stage latencies.
type StageRecorder interface {
	RecordStage(StageEvent) error
}

// TransitionEvent is a scheduler state change of one telescope.
type TransitionEvent struct {
	RunID       string
	TelescopeID string
	From        model.State
	To          model.State
	Time        time.Time
}

// TransitionRecorder can record scheduler state transitions.
type TransitionRecorder interface {
	RecordTransition(TransitionEvent) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordPlan(PlanRecord) error            { return nil }
func (NopSink) RecordStage(StageEvent) error           { return nil }
func (NopSink) RecordTransition(TransitionEvent) error { return nil }
