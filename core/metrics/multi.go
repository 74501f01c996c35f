package metrics

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlan forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordPlan(rec PlanRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordPlan(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordStage forwards stage latencies to the sinks that support them.
func (m *MultiSink) RecordStage(ev StageEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(StageRecorder); ok {
			if err := rec.RecordStage(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordTransition forwards state transitions.
func (m *MultiSink) RecordTransition(ev TransitionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TransitionRecorder); ok {
			if err := rec.RecordTransition(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
