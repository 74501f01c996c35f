package scenarios

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kilianp07/skyplan/core/model"
	"github.com/kilianp07/skyplan/core/planner"
	"github.com/kilianp07/skyplan/core/scheduler"
	"github.com/kilianp07/skyplan/core/visibility"
	"github.com/kilianp07/skyplan/infra/logger"
	"github.com/kilianp07/skyplan/infra/metrics"
)

// Epoch is the start of every scenario's observing window.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func offset(sec float64) time.Time {
	return Epoch.Add(time.Duration(sec * float64(time.Second)))
}

// blindOracle hides every tile from the listed telescopes.
type blindOracle struct {
	next  visibility.Oracle
	blind []string
}

func (o blindOracle) Window(ctx context.Context, tile model.Tile, prof model.TelescopeProfile, start, end time.Time) (model.VisibilityWindow, error) {
	if slices.Contains(o.blind, prof.ID) {
		return model.VisibilityWindow{TileID: tile.ID, TelescopeID: prof.ID}, nil
	}
	return o.next.Window(ctx, tile, prof, start, end)
}

// Oracle returns the scenario's visibility.
func (sc *Scenario) Oracle() visibility.Oracle {
	st := visibility.NewStatic()
	st.Default = []model.Interval{{Start: Epoch, End: offset(sc.DurationSec)}}
	for _, w := range sc.Windows {
		ivs := make([]model.Interval, 0, len(w.Intervals))
		for _, iv := range w.Intervals {
			if len(iv) == 2 {
				ivs = append(ivs, model.Interval{Start: offset(iv[0]), End: offset(iv[1])})
			}
		}
		st.Set(w.Telescope, w.Tile, ivs...)
	}
	return blindOracle{next: st, blind: sc.Blind}
}

// Request assembles the planner request.
func (sc *Scenario) Request(g *model.ProbabilityGrid) planner.Request {
	tels := slices.Clone(sc.Telescopes)
	for i := range tels {
		if pts, ok := sc.Tessellations[tels[i].Profile.ID]; ok {
			tels[i].TilingParams.Tessellation = pts
		}
	}
	return planner.Request{
		Grid:       g,
		Telescopes: tels,
		Schedule: scheduler.Options{
			Start:     Epoch,
			End:       offset(sc.DurationSec),
			Ordering:  scheduler.Ordering(sc.Ordering),
			Exclusive: sc.Exclusive,
		},
		ObservabilityThreshold: sc.Threshold,
		Iterative:              sc.Iterative,
	}
}

// RunScenario plans the scenario and checks every expectation it sets.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	g, err := sc.Grid()
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	p := planner.New(sc.Oracle(), logger.NopLogger{})
	p.Metrics = sink
	p.NewRunID = func() string { return sc.Name }

	res, err := p.Plan(context.Background(), sc.Request(g))
	exp := sc.Expected
	if exp.Error != "" {
		if err == nil {
			t.Fatalf("scenario %s: expected %s error, got a plan", sc.Name, exp.Error)
		}
		if kind, _ := model.KindOf(err); string(kind) != exp.Error {
			t.Fatalf("scenario %s: expected %s error, got %v", sc.Name, exp.Error, err)
		}
		return
	}
	if err != nil {
		t.Fatalf("scenario %s: %v", sc.Name, err)
	}

	for tel, n := range exp.Tiles {
		if got := len(res.TilesFor(tel)); got != n {
			t.Errorf("scenario %s: %s has %d tiles, expected %d", sc.Name, tel, got, n)
		}
	}
	if exp.Entries != nil && len(res.Plan.Entries) != *exp.Entries {
		t.Errorf("scenario %s: %d entries, expected %d", sc.Name, len(res.Plan.Entries), *exp.Entries)
	}
	if len(exp.Starts) > 0 {
		starts := make([]float64, len(res.Plan.Entries))
		for i, e := range res.Plan.Entries {
			starts[i] = e.Start.Sub(Epoch).Seconds()
		}
		if !slices.Equal(starts, exp.Starts) {
			t.Errorf("scenario %s: entry starts %v, expected %v", sc.Name, starts, exp.Starts)
		}
	}
	missed := map[string]int{}
	for _, m := range res.Plan.Missed {
		missed[string(m.Reason)]++
	}
	for reason, n := range exp.Missed {
		if missed[reason] != n {
			t.Errorf("scenario %s: %d tiles missed for %s, expected %d", sc.Name, missed[reason], reason, n)
		}
	}
	var excluded []string
	for _, ex := range res.Plan.Excluded {
		excluded = append(excluded, ex.TelescopeID)
	}
	if exp.Excluded != nil && !slices.Equal(excluded, exp.Excluded) {
		t.Errorf("scenario %s: excluded %v, expected %v", sc.Name, excluded, exp.Excluded)
	}
	if res.Summary.ProbabilityCaptured+1e-9 < exp.MinProbability {
		t.Errorf("scenario %s: captured %.4f, expected at least %.4f", sc.Name, res.Summary.ProbabilityCaptured, exp.MinProbability)
	}

	if n, err := testutil.GatherAndCount(reg, "skyplan_plans_total"); err != nil || n != 1 {
		t.Errorf("scenario %s: plans_total series %d (%v)", sc.Name, n, err)
	}
}
