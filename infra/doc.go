// Package infra contains the adapters behind the core interfaces: the
// zerolog logger, Prometheus and InfluxDB metrics sinks and the MQTT plan
// publisher. Nothing under core imports these packages.
package infra
