package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/skyplan/core/metrics"
)

// PromSink records planning runs in Prometheus metrics.
type PromSink struct {
	plans       prometheus.Counter
	captured    prometheus.Gauge
	telCaptured *prometheus.GaugeVec
	utilization *prometheus.GaugeVec
	exposures   *prometheus.CounterVec
	missed      *prometheus.CounterVec
	excluded    *prometheus.CounterVec
	stages      *prometheus.HistogramVec
	transitions *prometheus.CounterVec
}

// NewPromSink registers plan metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// that are already registered are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		plans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skyplan_plans_total",
			Help: "Number of coverage plans produced",
		}),
		captured: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skyplan_probability_captured",
			Help: "Probability captured by the last plan",
		}),
		telCaptured: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "skyplan_telescope_probability",
			Help: "Probability covered by each telescope in the last plan",
		}, []string{"telescope"}),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "skyplan_telescope_utilization_ratio",
			Help: "Share of the telescope budget spent exposing in the last plan",
		}, []string{"telescope"}),
		exposures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skyplan_exposures_total",
			Help: "Scheduled exposures",
		}, []string{"telescope"}),
		missed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skyplan_missed_tiles_total",
			Help: "Tiles left with unscheduled exposures",
		}, []string{"telescope", "reason"}),
		excluded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skyplan_excluded_telescopes_total",
			Help: "Telescopes excluded from a run",
		}, []string{"telescope", "kind"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skyplan_stage_duration_seconds",
			Help:    "Wall time spent in each planning stage",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skyplan_state_transitions_total",
			Help: "Scheduler state transitions",
		}, []string{"telescope", "to"}),
	}
	var err error
	if s.plans, err = register(reg, s.plans); err != nil {
		return nil, err
	}
	if s.captured, err = register(reg, s.captured); err != nil {
		return nil, err
	}
	if s.telCaptured, err = register(reg, s.telCaptured); err != nil {
		return nil, err
	}
	if s.utilization, err = register(reg, s.utilization); err != nil {
		return nil, err
	}
	if s.exposures, err = register(reg, s.exposures); err != nil {
		return nil, err
	}
	if s.missed, err = register(reg, s.missed); err != nil {
		return nil, err
	}
	if s.excluded, err = register(reg, s.excluded); err != nil {
		return nil, err
	}
	if s.stages, err = register(reg, s.stages); err != nil {
		return nil, err
	}
	if s.transitions, err = register(reg, s.transitions); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordPlan updates the plan gauges and counters.
func (s *PromSink) RecordPlan(rec coremetrics.PlanRecord) error {
	s.plans.Inc()
	s.captured.Set(rec.Summary.ProbabilityCaptured)
	for tel, ts := range rec.Summary.PerTelescope {
		s.telCaptured.WithLabelValues(tel).Set(ts.Probability)
		s.utilization.WithLabelValues(tel).Set(ts.Utilization)
		s.exposures.WithLabelValues(tel).Add(float64(ts.Exposures))
	}
	for _, m := range rec.Missed {
		s.missed.WithLabelValues(m.TelescopeID, string(m.Reason)).Inc()
	}
	for _, x := range rec.Excluded {
		s.excluded.WithLabelValues(x.TelescopeID, string(x.Kind)).Inc()
	}
	return nil
}

// RecordStage observes the stage latency histogram.
func (s *PromSink) RecordStage(ev coremetrics.StageEvent) error {
	s.stages.WithLabelValues(ev.Stage).Observe(ev.Duration.Seconds())
	return nil
}

// RecordTransition counts scheduler transitions by target state.
func (s *PromSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	s.transitions.WithLabelValues(ev.TelescopeID, string(ev.To)).Inc()
	return nil
}

// WriteTextfile dumps the gatherer in text exposition format to path, for
// node_exporter's textfile collector. A nil gatherer uses the default one.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return prometheus.WriteToTextfile(path, g)
}
