package metrics

import (
	"fmt"

	"github.com/kilianp07/skyplan/core/factory"
	coremetrics "github.com/kilianp07/skyplan/core/metrics"
)

// InfluxConfig is the "influx" sink configuration.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// Validate requires the server and the destination.
func (c InfluxConfig) Validate() error {
	if c.URL == "" || c.Org == "" || c.Bucket == "" {
		return fmt.Errorf("influx sink needs url, org and bucket")
	}
	return nil
}

func init() {
	factory.MustRegister(coremetrics.RegisterMetricsSink, "nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})
	factory.MustRegister(coremetrics.RegisterMetricsSink, "prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSink()
	})
	factory.MustRegister(coremetrics.RegisterMetricsSink, "influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})
}
