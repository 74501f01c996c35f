// Package app assembles a planner and its side channels from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/skyplan/config"
	"github.com/kilianp07/skyplan/core/events"
	coremetrics "github.com/kilianp07/skyplan/core/metrics"
	"github.com/kilianp07/skyplan/core/model"
	coremqtt "github.com/kilianp07/skyplan/core/mqtt"
	"github.com/kilianp07/skyplan/core/planner"
	"github.com/kilianp07/skyplan/core/runlog"
	"github.com/kilianp07/skyplan/core/visibility"
	"github.com/kilianp07/skyplan/infra/logger"
	"github.com/kilianp07/skyplan/infra/metrics"
	"github.com/kilianp07/skyplan/infra/mqtt"
	"github.com/kilianp07/skyplan/internal/eventbus"
)

// Service runs plans with metrics, run history and plan publishing attached.
type Service struct {
	Planner   *planner.Planner
	cfg       *config.Config
	tels      []planner.TelescopeConfig
	bus       *eventbus.TypedBus[events.Event]
	sink      coremetrics.MetricsSink
	store     runlog.Store
	publisher coremqtt.PlanPublisher
	log       logger.Logger
	gatherer  prometheus.Gatherer

	stop      context.CancelFunc
	collector <-chan struct{}
}

var newPublisher = func(cfg mqtt.Config) (coremqtt.PlanPublisher, error) {
	return mqtt.NewPahoPublisher(cfg)
}

// New builds a Service from a loaded configuration. Profiles, tessellations
// and catalogs are read here so that a bad file fails before any planning.
func New(cfg *config.Config) (*Service, error) {
	log := logger.New("service")
	tels, err := cfg.PlannerTelescopes()
	if err != nil {
		return nil, err
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	s := &Service{
		cfg:       cfg,
		tels:      tels,
		sink:      sink,
		log:       log,
		publisher: coremqtt.NopPublisher{},
		gatherer:  prometheus.DefaultGatherer,
	}
	if cfg.RunLog.Enabled() {
		st, err := runlog.NewRotatingJSONLStore(cfg.RunLog.Path, cfg.RunLog.MaxSizeMB, cfg.RunLog.MaxBackups, cfg.RunLog.MaxAgeDays)
		if err != nil {
			return nil, fmt.Errorf("run log: %w", err)
		}
		s.store = st
	}
	if cfg.MQTT.Enabled() {
		pub, err := newPublisher(cfg.MQTT)
		if err != nil {
			s.closeStore()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		s.publisher = pub
	}

	s.bus = eventbus.NewTyped[events.Event]()
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.collector = metrics.StartEventCollector(ctx, s.bus, sink)

	s.Planner = planner.New(oracle(cfg.Visibility, cfg.Scheduler.Start, cfg.Scheduler.End), logger.New("planner"))
	s.Planner.Metrics = sink
	s.Planner.Events = s.bus
	return s, nil
}

// oracle builds the configured visibility oracle, cached when asked to.
func oracle(c config.VisibilityConfig, start, end time.Time) visibility.Oracle {
	var o visibility.Oracle
	switch c.Mode {
	case "always":
		st := visibility.NewStatic()
		st.Default = []model.Interval{{Start: start, End: end}}
		o = st
	default:
		o = visibility.Ephemeris{Step: time.Duration(c.StepSec * float64(time.Second))}
	}
	if c.CacheMinutes > 0 {
		ttl := time.Duration(c.CacheMinutes * float64(time.Minute))
		o = visibility.NewCached(o, ttl, 2*ttl)
	}
	return o
}

func (s *Service) request(g *model.ProbabilityGrid) planner.Request {
	return planner.Request{
		Grid:                   g,
		Telescopes:             s.tels,
		Schedule:               s.cfg.Scheduler,
		ObservabilityThreshold: s.cfg.ObservabilityThreshold,
		Iterative:              s.cfg.IterativeTiling,
	}
}

// Plan schedules the grid and then records, publishes and exports the
// result. Side channel failures are logged and do not fail the plan.
func (s *Service) Plan(ctx context.Context, g *model.ProbabilityGrid) (*planner.Result, error) {
	res, err := s.Planner.Plan(ctx, s.request(g))
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		if err := s.store.Append(ctx, s.record(g, res)); err != nil {
			s.log.Warnf("run log append: %v", err)
		}
	}
	if err := s.publisher.PublishPlan(ctx, res.Plan, res.Summary); err != nil {
		s.log.Warnf("publish plan %s: %v", res.RunID, err)
	}
	if path := s.cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path, s.gatherer); err != nil {
			s.log.Warnf("metrics textfile: %v", err)
		}
	}
	return res, nil
}

// Tiles runs tiling and allocation without visibility or scheduling.
func (s *Service) Tiles(ctx context.Context, g *model.ProbabilityGrid) (*planner.Result, error) {
	return s.Planner.Tiles(ctx, s.request(g))
}

// History returns past runs matching q. It is empty when the run log is
// disabled.
func (s *Service) History(ctx context.Context, q runlog.Query) ([]runlog.Record, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.Query(ctx, q)
}

func (s *Service) record(g *model.ProbabilityGrid, res *planner.Result) runlog.Record {
	ids := make([]string, 0, len(s.tels))
	for _, t := range s.tels {
		ids = append(ids, t.Profile.ID)
	}
	return runlog.Record{
		RunID:      res.RunID,
		Timestamp:  time.Now().UTC(),
		Nside:      g.Nside(),
		Telescopes: ids,
		Summary:    res.Summary,
		Missed:     res.Plan.Missed,
		Excluded:   res.Plan.Excluded,
		DurationMS: res.Duration.Milliseconds(),
	}
}

func (s *Service) closeStore() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// Close stops the event collector and releases the run log and broker
// connection.
func (s *Service) Close() error {
	s.bus.Close()
	s.stop()
	<-s.collector
	if p, ok := s.publisher.(interface{ Disconnect() }); ok {
		p.Disconnect()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	return s.closeStore()
}
