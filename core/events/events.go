package events

import (
	"time"

	"github.com/kilianp07/skyplan/core/model"
)

// Event is implemented by every planning event.
type Event interface {
	Run() string
}

// Publisher accepts events. eventbus.TypedBus[Event] satisfies it.
type Publisher interface {
	Publish(Event)
}

// StageCompleted is published when tiling, allocation, visibility or
// scheduling finishes for a telescope. TelescopeID is empty for stages that
// span all telescopes.
type StageCompleted struct {
	RunID       string
	Stage       string
	TelescopeID string
	Duration    time.Duration
	Err         error
}

func (e StageCompleted) Run() string { return e.RunID }

// StateChanged mirrors a scheduler transition. At is simulated plan time.
type StateChanged struct {
	RunID       string
	TelescopeID string
	From        model.State
	To          model.State
	At          time.Time
}

func (e StateChanged) Run() string { return e.RunID }

// TelescopeExcluded is published when a telescope takes no part in scheduling.
type TelescopeExcluded struct {
	RunID     string
	Exclusion model.Exclusion
}

func (e TelescopeExcluded) Run() string { return e.RunID }

// PlanCompleted carries the finished plan and its summary.
type PlanCompleted struct {
	RunID   string
	Plan    model.CoveragePlan
	Summary model.Summary
}

func (e PlanCompleted) Run() string { return e.RunID }
