package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/skyplan/core/events"
	coremetrics "github.com/kilianp07/skyplan/core/metrics"
	"github.com/kilianp07/skyplan/core/model"
	"github.com/kilianp07/skyplan/internal/eventbus"
)

type eventSink struct {
	coremetrics.NopSink
	mu     sync.Mutex
	stages []coremetrics.StageEvent
	trans  []coremetrics.TransitionEvent
}

func (s *eventSink) RecordStage(ev coremetrics.StageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, ev)
	return nil
}

func (s *eventSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trans = append(s.trans, ev)
	return nil
}

func TestEventCollector(t *testing.T) {
	bus := eventbus.NewTyped[events.Event]()
	sink := &eventSink{}
	done := StartEventCollector(context.Background(), bus, sink)

	bus.Publish(events.StageCompleted{RunID: "r", Stage: "allocation", TelescopeID: "ZTF", Duration: time.Millisecond, Err: errors.New("boom")})
	bus.Publish(events.StateChanged{RunID: "r", TelescopeID: "ZTF", From: model.StateReady, To: model.StateSelecting})
	bus.Publish(events.PlanCompleted{RunID: "r"})
	bus.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.stages) != 1 || sink.stages[0].Stage != "allocation" || sink.stages[0].Err != "boom" {
		t.Fatalf("stages %+v", sink.stages)
	}
	if len(sink.trans) != 1 || sink.trans[0].To != model.StateSelecting {
		t.Fatalf("transitions %+v", sink.trans)
	}
}

func TestEventCollectorStopsOnCancel(t *testing.T) {
	bus := eventbus.NewTyped[events.Event]()
	ctx, cancel := context.WithCancel(context.Background())
	done := StartEventCollector(ctx, bus, coremetrics.NopSink{})
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}
