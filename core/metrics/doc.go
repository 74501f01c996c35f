// Package metrics defines the sinks that record planning runs. A sink
// receives one PlanRecord per plan and may optionally implement
// StageRecorder or TransitionRecorder for finer events. NewMetricsSink
// builds sinks from configuration through the registry populated by
// infra/metrics, returning a MultiSink when several are configured.
package metrics
