// Package events defines the planning events emitted on the event bus.
//
// Available event types:
//   - StageCompleted: one pipeline stage finished for a telescope
//   - StateChanged: a telescope changed scheduler state
//   - TelescopeExcluded: a telescope was dropped from the run
//   - PlanCompleted: the run produced its coverage plan
package events
