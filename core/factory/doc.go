// Package factory builds pluggable modules, such as metrics sinks, from
// configuration. A module is a type name plus a map of raw settings that the
// registered factory decodes with Decode:
//
//	factory.MustRegister(metrics.RegisterMetricsSink, "influx", func(conf map[string]any) (metrics.MetricsSink, error) {
//	    var c InfluxConfig
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewInfluxSink(c.URL, c.Token, c.Org, c.Bucket), nil
//	})
package factory
