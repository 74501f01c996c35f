package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/skyplan/core/factory"
	coremetrics "github.com/kilianp07/skyplan/core/metrics"
)

func captureServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var mu sync.Mutex
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, strings.TrimSpace(string(b)))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), bodies...)
	}
}

func TestInfluxSink_RecordPlan(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	rec := planRecord()
	rec.Duration = 1500 * time.Millisecond
	if err := sink.RecordPlan(rec); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p1 := write.NewPointWithMeasurement("plan").
		AddTag("run_id", "run-1").
		AddField("probability_captured", 0.75).
		AddField("entries", 3).
		AddField("missed", 1).
		AddField("excluded", 1).
		AddField("duration_ms", int64(1500)).
		SetTime(rec.Time)
	p2 := write.NewPointWithMeasurement("plan_telescope").
		AddTag("run_id", "run-1").
		AddTag("telescope", "ZTF").
		AddField("exposures", 3).
		AddField("tiles", 2).
		AddField("exposure_s", 0.0).
		AddField("utilization", 0.5).
		AddField("probability", 0.75).
		SetTime(rec.Time)
	expected := strings.TrimSpace(write.PointToLineProtocol(p1, time.Nanosecond)) + "\n" +
		strings.TrimSpace(write.PointToLineProtocol(p2, time.Nanosecond))
	got := bodies()
	if len(got) != 1 || got[0] != expected {
		t.Errorf("unexpected bodies: %#v", got)
	}
}

func TestInfluxSink_RecordStage(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	now := time.Now()
	ev := coremetrics.StageEvent{RunID: "r", Stage: "tiling", TelescopeID: "ZTF", Duration: 2 * time.Millisecond, Time: now}
	if err := sink.RecordStage(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("plan_stage").
		AddTag("run_id", "r").
		AddTag("stage", "tiling").
		AddTag("telescope", "ZTF").
		AddField("latency_ms", 2.0).
		SetTime(now)
	exp := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if got := bodies(); len(got) != 1 || got[0] != exp {
		t.Errorf("bodies: %#v", got)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}

func TestInfluxFactoryRequiresDestination(t *testing.T) {
	_, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "influx", Conf: map[string]any{"url": "http://localhost:8086"}}})
	if err == nil || !strings.Contains(err.Error(), "needs url, org and bucket") {
		t.Fatalf("expected validation error, got %v", err)
	}
}
