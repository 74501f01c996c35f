package scheduler

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/kilianp07/skyplan/core/logger"
	"github.com/kilianp07/skyplan/core/model"
	"github.com/kilianp07/skyplan/core/sky"
)

// Ordering selects how eligible candidates are ranked.
type Ordering string

const (
	// ByProbability takes the most probable tile first.
	ByProbability Ordering = "probability"
	// ByRABands sweeps RA bands from west to east, most probable first
	// within a band.
	ByRABands Ordering = "ra_bands"
	// ByObservability takes the tile whose current interval closes soonest.
	ByObservability Ordering = "observability"
	// BySlew maximizes probability per second of slew plus exposure.
	BySlew Ordering = "slew"
)

// Options bound a scheduling run.
type Options struct {
	Start       time.Time `json:"start" yaml:"start"`
	End         time.Time `json:"end" yaml:"end"`
	Ordering    Ordering  `json:"ordering" yaml:"ordering"`
	RABandWidth float64   `json:"ra_band_width" yaml:"ra_band_width"`
	// Exclusive forbids scheduling a tile id on more than one telescope.
	Exclusive bool `json:"exclusive" yaml:"exclusive"`
}

// SetDefaults fills unset fields.
func (o *Options) SetDefaults() {
	if o.Ordering == "" {
		o.Ordering = ByProbability
	}
	if o.RABandWidth == 0 {
		o.RABandWidth = 30
	}
}

// Validate checks the observing window and ordering.
func (o Options) Validate() error {
	if !o.End.After(o.Start) {
		return model.Invalid("", "observing window ends at %v before it starts at %v", o.End, o.Start)
	}
	switch o.Ordering {
	case ByProbability, ByRABands, ByObservability, BySlew:
	default:
		return model.Invalid("", "unknown ordering %q", o.Ordering)
	}
	if o.RABandWidth <= 0 || o.RABandWidth > 360 {
		return model.Invalid("", "ra band width %v outside (0,360]", o.RABandWidth)
	}
	return nil
}

// Run is one telescope's input to the scheduler.
type Run struct {
	Profile model.TelescopeProfile
	// Tiles carry their allocations; the scheduler sets their Status.
	Tiles []model.Tile
	// Windows maps tile ids to visibility. A missing entry means never
	// visible.
	Windows map[string]model.VisibilityWindow
	// Budget is the telescope time available for slews and exposures. Zero
	// means the whole observing window.
	Budget time.Duration
}

// Scheduler builds coverage plans.
type Scheduler struct {
	Options Options
	Logger  logger.Logger
	// Observer, when set, is called on every telescope state change with the
	// simulated time at which it happened.
	Observer func(telescope string, from, to model.State, at time.Time)
}

// New returns a Scheduler with defaults applied to opts.
func New(opts Options, log logger.Logger) *Scheduler {
	opts.SetDefaults()
	return &Scheduler{Options: opts, Logger: log}
}

type candidate struct {
	tile      *model.Tile
	remaining int
	done      int
	lastEnd   time.Time
	window    model.VisibilityWindow
}

type telescope struct {
	run     *Run
	now     time.Time
	ra, dec float64
	placed  bool
	budget  time.Duration
	state   model.State
	cands   []*candidate
	missed  int
	res     *Reservations
}

// option is a candidate evaluated at the telescope's current time.
type option struct {
	c     *candidate
	slew  time.Duration
	start time.Time
	close time.Time
}

// Schedule sequences every run. Tile statuses in runs are updated in place.
// The same runs and options always give the same plan.
func (s *Scheduler) Schedule(ctx context.Context, runs []Run) (model.CoveragePlan, error) {
	opts := s.Options
	opts.SetDefaults()
	plan := model.CoveragePlan{States: map[string]model.State{}}
	if err := opts.Validate(); err != nil {
		return plan, err
	}
	var res *Reservations
	if opts.Exclusive {
		res = NewReservations()
	}

	tels := make([]*telescope, 0, len(runs))
	for i := range runs {
		tels = append(tels, s.newTelescope(&runs[i], opts, res))
	}
	sort.SliceStable(tels, func(a, b int) bool { return tels[a].run.Profile.ID < tels[b].run.Profile.ID })

	for {
		if err := ctx.Err(); err != nil {
			return plan, err
		}
		var cur *telescope
		for _, t := range tels {
			if t.state.Terminal() {
				continue
			}
			if cur == nil || t.now.Before(cur.now) {
				cur = t
			}
		}
		if cur == nil {
			break
		}
		s.step(cur, opts, &plan)
	}
	for _, t := range tels {
		plan.States[t.run.Profile.ID] = t.state
	}
	return plan, nil
}

func (s *Scheduler) newTelescope(r *Run, opts Options, res *Reservations) *telescope {
	t := &telescope{run: r, now: opts.Start, state: model.StateReady, res: res, budget: r.Budget}
	if t.budget <= 0 {
		t.budget = opts.End.Sub(opts.Start)
	}
	if p := r.Profile.Park; p != nil {
		t.ra, t.dec, t.placed = p.RA, p.Dec, true
	}
	for i := range r.Tiles {
		tl := &r.Tiles[i]
		tl.Status = model.TilePending
		if tl.Allocation == nil || tl.Allocation.ExposureCount <= 0 {
			continue
		}
		t.cands = append(t.cands, &candidate{tile: tl, remaining: tl.Allocation.ExposureCount, window: r.Windows[tl.ID]})
	}
	return t
}

func (s *Scheduler) transition(t *telescope, to model.State) {
	if t.state == to {
		return
	}
	if s.Logger != nil {
		s.Logger.Debugw("telescope state", map[string]any{
			"telescope": t.run.Profile.ID, "from": string(t.state), "to": string(to), "at": t.now,
		})
	}
	if s.Observer != nil {
		s.Observer(t.run.Profile.ID, t.state, to, t.now)
	}
	t.state = to
}

// step advances one telescope by one exposure, or by idling until the next
// candidate becomes startable, or into a terminal state.
func (s *Scheduler) step(t *telescope, opts Options, plan *model.CoveragePlan) {
	s.transition(t, model.StateSelecting)
	var (
		eligible []option
		wake     time.Time
		// out of budget from the current position only
		blocked = map[*candidate]bool{}
	)
	kept := t.cands[:0]
	for _, c := range t.cands {
		if c.remaining <= 0 {
			continue
		}
		o, reason, ok := t.evaluate(c, opts)
		if !ok && reason != notNow {
			s.miss(t, c, reason, plan)
			continue
		}
		kept = append(kept, c)
		if !ok {
			blocked[c] = true
			continue
		}
		if !o.start.After(t.now.Add(o.slew)) {
			eligible = append(eligible, o)
			continue
		}
		if w := o.start.Add(-o.slew); wake.IsZero() || w.Before(wake) {
			wake = w
		}
	}
	t.cands = kept

	if len(eligible) == 0 && len(t.cands) > 0 {
		if wake.After(t.now) {
			t.now = wake
			return
		}
		// The telescope cannot move, so nothing left becomes startable.
		for _, c := range t.cands {
			reason := model.ReasonWindowClosed
			if blocked[c] {
				reason = model.ReasonBudgetExhausted
			}
			s.miss(t, c, reason, plan)
		}
		t.cands = nil
	}
	if len(t.cands) == 0 {
		if t.missed == 0 {
			s.transition(t, model.StateDone)
		} else {
			s.transition(t, model.StateExhausted)
		}
		return
	}

	sort.SliceStable(eligible, func(a, b int) bool { return less(eligible[a], eligible[b], opts) })
	o := eligible[0]
	c := o.c
	if owner := t.res.Reserve(c.tile.ID, t.run.Profile.ID); owner != t.run.Profile.ID {
		s.miss(t, c, model.ReasonReservedByOther, plan)
		return
	}

	if o.slew > 0 {
		s.transition(t, model.StateSlewing)
	}
	s.transition(t, model.StateExposing)
	a := c.tile.Allocation
	start := t.now.Add(o.slew)
	end := start.Add(a.ExposureDuration)
	plan.Entries = append(plan.Entries, model.ScheduleEntry{
		TelescopeID: t.run.Profile.ID,
		TileID:      c.tile.ID,
		Start:       start,
		End:         end,
		Filter:      a.Filter(c.done),
		Slew:        o.slew,
		RA:          c.tile.CenterRA,
		Dec:         c.tile.CenterDec,
	})
	t.now = end
	t.budget -= o.slew + a.ExposureDuration
	t.ra, t.dec, t.placed = c.tile.CenterRA, c.tile.CenterDec, true
	c.remaining--
	c.done++
	c.lastEnd = end
	if c.remaining == 0 {
		c.tile.Status = model.TileScheduled
	} else {
		c.tile.Status = model.TilePartial
	}
}

// notNow marks a candidate whose slew from the current position does not fit
// the remaining budget. A later, nearer position may still allow it.
const notNow model.Reason = ""

// evaluate finds the earliest start of the candidate's next exposure. It
// reports a reason when the candidate can never be scheduled again, or
// notNow when it cannot be scheduled from here.
func (t *telescope) evaluate(c *candidate, opts Options) (option, model.Reason, bool) {
	if owner, ok := t.res.Owner(c.tile.ID); ok && owner != t.run.Profile.ID {
		return option{}, model.ReasonReservedByOther, false
	}
	var slew time.Duration
	if t.placed {
		slew = t.run.Profile.Slew.Time(sky.Separation(t.ra, t.dec, c.tile.CenterRA, c.tile.CenterDec))
	}
	dur := c.tile.Allocation.ExposureDuration
	if dur > t.budget {
		return option{}, model.ReasonBudgetExhausted, false
	}
	if slew > t.budget-dur {
		return option{}, notNow, false
	}
	earliest := t.now.Add(slew)
	if c.done > 0 {
		if g := c.lastEnd.Add(c.tile.Allocation.MinRevisitGap); g.After(earliest) {
			earliest = g
		}
	}
	start, ok := c.window.Fit(earliest, dur, opts.End)
	if !ok {
		return option{}, model.ReasonWindowClosed, false
	}
	o := option{c: c, slew: slew, start: start}
	for _, iv := range c.window.Intervals {
		if iv.Covers(start, start.Add(dur)) {
			o.close = iv.End
			break
		}
	}
	return o, "", true
}

func (s *Scheduler) miss(t *telescope, c *candidate, reason model.Reason, plan *model.CoveragePlan) {
	plan.Missed = append(plan.Missed, model.MissedTile{
		TileID:      c.tile.ID,
		TelescopeID: t.run.Profile.ID,
		Reason:      reason,
		Remaining:   c.remaining,
	})
	if c.done == 0 {
		c.tile.Status = model.TileMissed
	}
	c.remaining = 0
	t.missed++
	if s.Logger != nil {
		s.Logger.Debugf("tile %s missed by %s: %s (%d left)", c.tile.ID, t.run.Profile.ID, reason, plan.Missed[len(plan.Missed)-1].Remaining)
	}
}

func less(a, b option, opts Options) bool {
	ta, tb := a.c.tile, b.c.tile
	switch opts.Ordering {
	case ByRABands:
		ba, bb := band(ta.CenterRA, opts.RABandWidth), band(tb.CenterRA, opts.RABandWidth)
		if ba != bb {
			return ba < bb
		}
	case ByObservability:
		if !a.close.Equal(b.close) {
			return a.close.Before(b.close)
		}
	case BySlew:
		ra, rb := rate(a), rate(b)
		if ra != rb {
			return ra > rb
		}
	}
	if ta.ProbabilityMass != tb.ProbabilityMass {
		return ta.ProbabilityMass > tb.ProbabilityMass
	}
	return ta.ID < tb.ID
}

func band(ra, width float64) int {
	return int(math.Floor(sky.NormRA(ra) / width))
}

// rate is probability per second of telescope time spent on the exposure.
func rate(o option) float64 {
	d := (o.slew + o.c.tile.Allocation.ExposureDuration).Seconds()
	if d <= 0 {
		return math.Inf(1)
	}
	return o.c.tile.ProbabilityMass / d
}
