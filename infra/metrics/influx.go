package metrics

import (
	"context"
	"maps"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/skyplan/core/metrics"
	"github.com/kilianp07/skyplan/infra/logger"
)

// InfluxSink writes plan records to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails, so planning never depends on it.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordPlan writes one "plan" point plus one "plan_telescope" point per
// telescope, in a single request.
func (s *InfluxSink) RecordPlan(rec coremetrics.PlanRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ts := rec.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	points := []*write.Point{
		write.NewPointWithMeasurement("plan").
			AddTag("run_id", rec.RunID).
			AddField("probability_captured", round6(rec.Summary.ProbabilityCaptured)).
			AddField("entries", rec.Summary.Entries).
			AddField("missed", len(rec.Missed)).
			AddField("excluded", len(rec.Excluded)).
			AddField("duration_ms", rec.Duration.Milliseconds()).
			SetTime(ts),
	}
	for _, tel := range sortedKeys(rec.Summary.PerTelescope) {
		t := rec.Summary.PerTelescope[tel]
		points = append(points, write.NewPointWithMeasurement("plan_telescope").
			AddTag("run_id", rec.RunID).
			AddTag("telescope", tel).
			AddField("exposures", t.Exposures).
			AddField("tiles", t.Tiles).
			AddField("exposure_s", round6(t.ExposureTime.Seconds())).
			AddField("utilization", round6(t.Utilization)).
			AddField("probability", round6(t.Probability)).
			SetTime(ts))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordStage writes a stage latency.
func (s *InfluxSink) RecordStage(ev coremetrics.StageEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("plan_stage").
		AddTag("run_id", ev.RunID).
		AddTag("stage", ev.Stage)
	if ev.TelescopeID != "" {
		p = p.AddTag("telescope", ev.TelescopeID)
	}
	p = p.AddField("latency_ms", round6(float64(ev.Duration)/float64(time.Millisecond)))
	if ev.Err != "" {
		p = p.AddField("error", ev.Err)
	}
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return s.writeAPI.WritePoint(ctx, p.SetTime(ts))
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
