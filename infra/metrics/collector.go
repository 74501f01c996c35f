package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/skyplan/core/events"
	coremetrics "github.com/kilianp07/skyplan/core/metrics"
	"github.com/kilianp07/skyplan/internal/eventbus"
)

// StartEventCollector subscribes to the bus and forwards stage and state
// events to the sink recorders it implements. The returned channel is
// closed once the collector has stopped, which happens when ctx is
// canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.Event], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	stages, _ := sink.(coremetrics.StageRecorder)
	states, _ := sink.(coremetrics.TransitionRecorder)
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.StageCompleted:
					if stages != nil {
						msg := ""
						if e.Err != nil {
							msg = e.Err.Error()
						}
						_ = stages.RecordStage(coremetrics.StageEvent{
							RunID: e.RunID, Stage: e.Stage, TelescopeID: e.TelescopeID,
							Duration: e.Duration, Err: msg, Time: time.Now(),
						})
					}
				case events.StateChanged:
					if states != nil {
						_ = states.RecordTransition(coremetrics.TransitionEvent{
							RunID: e.RunID, TelescopeID: e.TelescopeID, From: e.From, To: e.To, Time: e.At,
						})
					}
				}
			}
		}
	}()
	return done
}
