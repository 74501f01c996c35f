// Package planner runs the whole pipeline for one gravitational-wave
// follow-up: tiling and allocation per telescope, visibility, the
// observability cut, scheduling and the coverage summary.
package planner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/skyplan/core/allocation"
	"github.com/kilianp07/skyplan/core/events"
	"github.com/kilianp07/skyplan/core/logger"
	"github.com/kilianp07/skyplan/core/metrics"
	"github.com/kilianp07/skyplan/core/model"
	"github.com/kilianp07/skyplan/core/scheduler"
	"github.com/kilianp07/skyplan/core/sky"
	"github.com/kilianp07/skyplan/core/tiling"
	"github.com/kilianp07/skyplan/core/visibility"
)

// Stage names used in events and metrics.
const (
	StageTiling     = "tiling"
	StageAllocation = "allocation"
	StageVisibility = "visibility"
	StageScheduling = "scheduling"
)

// Result is what a run produced.
type Result struct {
	RunID string
	// Tiles holds every telescope's tiles with allocations and, after
	// Plan, their scheduling status. Grouped by telescope in id order.
	Tiles   []model.Tile
	Plan    model.CoveragePlan
	Summary model.Summary
	// Failures lists telescopes that took no part in scheduling, keyed by id.
	Failures map[string]error
	Duration time.Duration
}

// TilesFor returns one telescope's tiles.
func (r *Result) TilesFor(telescope string) []model.Tile {
	var out []model.Tile
	for _, t := range r.Tiles {
		if t.Telescope == telescope {
			out = append(out, t)
		}
	}
	return out
}

// Planner wires the pipeline stages to their collaborators. Only Oracle is
// required for Plan; the rest default to no-ops.
type Planner struct {
	Oracle  visibility.Oracle
	Logger  logger.Logger
	Metrics metrics.MetricsSink
	Events  events.Publisher
	// NewRunID generates run identifiers. Defaults to random UUIDs.
	NewRunID func() string
}

// New returns a Planner with the given oracle and logger.
func New(oracle visibility.Oracle, log logger.Logger) *Planner {
	return &Planner{Oracle: oracle, Logger: log}
}

type telescopeRun struct {
	cfg    TelescopeConfig
	budget time.Duration
	tiles  []model.Tile
	wins   map[string]model.VisibilityWindow
	err    error
}

// Tiles runs tiling and allocation only.
func (p *Planner) Tiles(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}
	runID := p.runID()
	runs, err := p.tileAll(ctx, runID, req)
	if err != nil {
		return nil, err
	}
	res := &Result{RunID: runID, Failures: map[string]error{}}
	for _, r := range runs {
		if r.err != nil {
			res.Failures[r.cfg.Profile.ID] = r.err
			continue
		}
		res.Tiles = append(res.Tiles, r.tiles...)
	}
	res.Duration = time.Since(started)
	return res, nil
}

// Plan runs the full pipeline. Input errors abort before any tiling. A
// telescope without coverage or with too little visibility is recorded in
// the plan's exclusions; the run fails only if no telescope produced tiles.
func (p *Planner) Plan(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}
	if p.Oracle == nil {
		return nil, model.Invalid("", "no visibility oracle")
	}
	runID := p.runID()
	p.log().Infof("plan %s: %s", runID, req)

	runs, err := p.tileAll(ctx, runID, req)
	if err != nil {
		return nil, err
	}
	if err := p.windowsAll(ctx, runID, req, runs); err != nil {
		return nil, err
	}

	res := &Result{RunID: runID, Failures: map[string]error{}}
	var exclusions []model.Exclusion
	var sched []scheduler.Run
	budgets := map[string]time.Duration{}
	for _, r := range runs {
		id := r.cfg.Profile.ID
		if r.err == nil && req.ObservabilityThreshold > 0 {
			r.err = observable(req, r)
		}
		if r.err != nil {
			res.Failures[id] = r.err
			kind, _ := model.KindOf(r.err)
			ex := model.Exclusion{TelescopeID: id, Kind: kind, Message: r.err.Error()}
			exclusions = append(exclusions, ex)
			p.publish(events.TelescopeExcluded{RunID: runID, Exclusion: ex})
			p.log().Warnf("telescope %s excluded: %v", id, r.err)
			continue
		}
		budgets[id] = r.budget
		sched = append(sched, scheduler.Run{Profile: r.cfg.Profile, Tiles: r.tiles, Windows: r.wins, Budget: r.budget})
	}

	s := scheduler.New(req.Schedule, p.Logger)
	s.Observer = func(tel string, from, to model.State, at time.Time) {
		p.publish(events.StateChanged{RunID: runID, TelescopeID: tel, From: from, To: to, At: at})
	}
	t0 := time.Now()
	plan, err := s.Schedule(ctx, sched)
	p.stage(runID, StageScheduling, "", time.Since(t0), err)
	if err != nil {
		return nil, err
	}
	plan.RunID = runID
	plan.Excluded = exclusions

	for _, r := range sched {
		res.Tiles = append(res.Tiles, r.Tiles...)
	}
	res.Plan = plan
	res.Summary = model.Summarize(plan, res.Tiles, req.Grid, budgets)
	res.Duration = time.Since(started)

	if sink := p.Metrics; sink != nil {
		rec := metrics.PlanRecord{
			RunID: runID, Summary: res.Summary, Missed: plan.Missed, Excluded: plan.Excluded,
			Duration: res.Duration, Time: time.Now(),
		}
		if err := sink.RecordPlan(rec); err != nil {
			p.log().Warnf("record plan %s: %v", runID, err)
		}
	}
	p.publish(events.PlanCompleted{RunID: runID, Plan: plan, Summary: res.Summary})
	p.log().Infof("plan %s: %d entries, %d missed, captured %.4f in %s",
		runID, len(plan.Entries), len(plan.Missed), res.Summary.ProbabilityCaptured, res.Duration)
	return res, nil
}

// tileAll runs tiling then allocation for every telescope, concurrently or,
// for an iterative request, one after another in id order. Per-telescope
// coverage failures are kept on the run; anything else aborts.
func (p *Planner) tileAll(ctx context.Context, runID string, req Request) ([]*telescopeRun, error) {
	runs := make([]*telescopeRun, len(req.Telescopes))
	for i, cfg := range req.Telescopes {
		runs[i] = &telescopeRun{cfg: cfg, budget: cfg.budget(req.Schedule)}
	}
	sort.Slice(runs, func(a, b int) bool { return runs[a].cfg.Profile.ID < runs[b].cfg.Profile.ID })

	if req.Iterative {
		grid := req.Grid
		for _, r := range runs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := p.tileOne(runID, grid, r); err != nil {
				return nil, err
			}
			if r.err == nil {
				grid = grid.Without(observedCells(r.tiles))
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for _, r := range runs {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return p.tileOne(runID, req.Grid, r)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var failures []error
	for _, r := range runs {
		if r.err != nil {
			failures = append(failures, r.err)
		}
	}
	if len(failures) == len(runs) {
		return nil, &model.Error{Kind: model.KindNoCoverage, Err: errors.Join(failures...)}
	}
	return runs, nil
}

// tileOne tiles and allocates one telescope against grid.
func (p *Planner) tileOne(runID string, grid *model.ProbabilityGrid, r *telescopeRun) error {
	cfg := r.cfg
	t0 := time.Now()
	tiles, err := tiling.Generate(grid, cfg.Profile, cfg.Tiling, cfg.TilingParams)
	p.stage(runID, StageTiling, cfg.Profile.ID, time.Since(t0), err)
	if err != nil {
		return keep(r, err)
	}

	ap := cfg.Allocation
	ap.Profile = cfg.Profile
	ap.Grid = grid
	t0 = time.Now()
	alloc, err := allocation.Allocate(tiles, r.budget, cfg.Law, ap)
	// The scheduler charges slews to the same budget, so set aside the slews
	// of one pass over the allocated tiles and allocate again.
	for i := 0; err == nil && i < maxReserveRounds; i++ {
		reserve := slewReserve(cfg.Profile, alloc)
		if reserve == 0 || reserve >= r.budget || exposureTime(alloc)+reserve <= r.budget {
			break
		}
		alloc, err = allocation.Allocate(tiles, r.budget-reserve, cfg.Law, ap)
	}
	p.stage(runID, StageAllocation, cfg.Profile.ID, time.Since(t0), err)
	if err != nil {
		return keep(r, err)
	}
	tiles = alloc
	r.tiles = tiles
	if !allocated(tiles) {
		r.err = model.NoCoverage(cfg.Profile.ID, "budget %s allows no exposure", r.budget)
	}
	return nil
}

// maxReserveRounds bounds the re-allocations made to fit the slew reserve.
const maxReserveRounds = 3

// slewReserve is the slew time of visiting each allocated tile once, most
// probable first and from the park position when there is one. This is the
// path the scheduler takes under the default ordering when every tile is
// visible.
func slewReserve(prof model.TelescopeProfile, tiles []model.Tile) time.Duration {
	var visit []model.Tile
	for _, t := range tiles {
		if t.Allocation != nil && t.Allocation.ExposureCount > 0 {
			visit = append(visit, t)
		}
	}
	sort.SliceStable(visit, func(a, b int) bool {
		if visit[a].ProbabilityMass != visit[b].ProbabilityMass {
			return visit[a].ProbabilityMass > visit[b].ProbabilityMass
		}
		return visit[a].ID < visit[b].ID
	})
	var (
		total   time.Duration
		ra, dec float64
		placed  bool
	)
	if prof.Park != nil {
		ra, dec, placed = prof.Park.RA, prof.Park.Dec, true
	}
	for _, t := range visit {
		if placed {
			d := prof.Slew.Time(sky.Separation(ra, dec, t.CenterRA, t.CenterDec))
			if d >= model.MaxDuration-total {
				return model.MaxDuration
			}
			total += d
		}
		ra, dec, placed = t.CenterRA, t.CenterDec, true
	}
	return total
}

func exposureTime(tiles []model.Tile) time.Duration {
	var d time.Duration
	for _, t := range tiles {
		if t.Allocation != nil {
			d += t.Allocation.Total()
		}
	}
	return d
}

// observedCells lists the cells of tiles that received exposures.
func observedCells(tiles []model.Tile) []int {
	var cells []int
	for _, t := range tiles {
		if t.Allocation != nil && t.Allocation.ExposureCount > 0 {
			cells = append(cells, t.Cells...)
		}
	}
	return cells
}

// keep stores a coverage failure on the run and propagates anything else.
func keep(r *telescopeRun, err error) error {
	if errors.Is(err, model.ErrNoCoverage) {
		r.err = err
		return nil
	}
	return err
}

func allocated(tiles []model.Tile) bool {
	for _, t := range tiles {
		if t.Allocation != nil && t.Allocation.ExposureCount > 0 {
			return true
		}
	}
	return false
}

// windowsAll asks the oracle once per (telescope, tile) that has exposures.
func (p *Planner) windowsAll(ctx context.Context, runID string, req Request, runs []*telescopeRun) error {
	type job struct {
		run  *telescopeRun
		tile model.Tile
	}
	var jobs []job
	for _, r := range runs {
		if r.err != nil {
			continue
		}
		r.wins = make(map[string]model.VisibilityWindow, len(r.tiles))
		for _, t := range r.tiles {
			if t.Allocation != nil && t.Allocation.ExposureCount > 0 {
				jobs = append(jobs, job{run: r, tile: t})
			}
		}
	}
	out := make([]model.VisibilityWindow, len(jobs))
	t0 := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, j := range jobs {
		g.Go(func() error {
			w, err := p.Oracle.Window(gctx, j.tile, j.run.cfg.Profile, req.Schedule.Start, req.Schedule.End)
			if err != nil {
				return fmt.Errorf("visibility of %s: %w", j.tile.Key(), err)
			}
			out[i] = w
			return nil
		})
	}
	err := g.Wait()
	p.stage(runID, StageVisibility, "", time.Since(t0), err)
	if err != nil {
		return err
	}
	for i, j := range jobs {
		j.run.wins[j.tile.ID] = out[i]
	}
	return nil
}

// observable applies the observability cut: the union of cells of tiles
// with any visibility must hold at least the threshold share of the grid.
func observable(req Request, r *telescopeRun) error {
	var cells []int
	for _, t := range r.tiles {
		if w, ok := r.wins[t.ID]; ok && len(w.Intervals) > 0 {
			cells = append(cells, t.Cells...)
		}
	}
	sort.Ints(cells)
	cells = compact(cells)
	visible := req.Grid.Mass(cells)
	need := req.ObservabilityThreshold * req.Grid.Total()
	if visible < need {
		return &model.Error{
			Kind:      model.KindInsufficientVisibility,
			Telescope: r.cfg.Profile.ID,
			Err:       fmt.Errorf("visible probability %.4f below %.4f", visible, need),
		}
	}
	return nil
}

func compact(s []int) []int {
	if len(s) == 0 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func (p *Planner) runID() string {
	if p.NewRunID != nil {
		return p.NewRunID()
	}
	return uuid.NewString()
}

func (p *Planner) log() logger.Logger {
	if p.Logger == nil {
		return nopLogger{}
	}
	return p.Logger
}

func (p *Planner) publish(ev events.Event) {
	if p.Events != nil {
		p.Events.Publish(ev)
	}
}

func (p *Planner) stage(runID, name, tel string, d time.Duration, err error) {
	p.publish(events.StageCompleted{RunID: runID, Stage: name, TelescopeID: tel, Duration: d, Err: err})
	p.log().Debugw("stage done", map[string]any{"run": runID, "stage": name, "telescope": tel, "took": d, "err": err})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
