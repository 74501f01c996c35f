package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/skyplan/core/metrics"
	"github.com/kilianp07/skyplan/core/model"
)

func planRecord() coremetrics.PlanRecord {
	return coremetrics.PlanRecord{
		RunID: "run-1",
		Summary: model.Summary{
			ProbabilityCaptured: 0.75,
			Entries:             3,
			PerTelescope: map[string]model.TelescopeSummary{
				"ZTF": {Exposures: 3, Tiles: 2, Utilization: 0.5, Probability: 0.75},
			},
		},
		Missed:   []model.MissedTile{{TileID: "t9", TelescopeID: "ZTF", Reason: model.ReasonWindowClosed, Remaining: 1}},
		Excluded: []model.Exclusion{{TelescopeID: "KPED", Kind: model.KindInsufficientVisibility}},
		Time:     time.Now(),
	}
}

func TestPromSink_RecordPlan(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	if err := sink.RecordPlan(planRecord()); err != nil {
		t.Fatalf("record: %v", err)
	}

	expected := `
# HELP skyplan_exposures_total Scheduled exposures
# TYPE skyplan_exposures_total counter
skyplan_exposures_total{telescope="ZTF"} 3
`
	if err := testutil.CollectAndCompare(sink.exposures, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected exposures: %v", err)
	}
	if v := testutil.ToFloat64(sink.captured); v != 0.75 {
		t.Errorf("captured %v", v)
	}
	if v := testutil.ToFloat64(sink.missed.WithLabelValues("ZTF", "WindowClosed")); v != 1 {
		t.Errorf("missed %v", v)
	}
	if v := testutil.ToFloat64(sink.excluded.WithLabelValues("KPED", "InsufficientVisibility")); v != 1 {
		t.Errorf("excluded %v", v)
	}

	if err := sink.RecordStage(coremetrics.StageEvent{Stage: "tiling", Duration: 20 * time.Millisecond}); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if c := testutil.CollectAndCount(sink.stages); c != 1 {
		t.Errorf("stage series %d", c)
	}
	if err := sink.RecordTransition(coremetrics.TransitionEvent{TelescopeID: "ZTF", To: model.StateDone}); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if v := testutil.ToFloat64(sink.transitions.WithLabelValues("ZTF", "DONE")); v != 1 {
		t.Errorf("transitions %v", v)
	}
}

func TestPromSink_ReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	_ = a.RecordPlan(planRecord())
	_ = b.RecordPlan(planRecord())
	if v := testutil.ToFloat64(a.plans); v != 2 {
		t.Fatalf("expected shared counter at 2, got %v", v)
	}
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = sink.RecordPlan(planRecord())
	path := filepath.Join(t.TempDir(), "skyplan.prom")
	if err := WriteTextfile(path, reg); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "skyplan_probability_captured 0.75") {
		t.Fatalf("textfile missing gauge:\n%s", data)
	}
}
