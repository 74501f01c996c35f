// Package mqtt defines how finished plans leave the process. The Paho
// implementation lives in infra/mqtt.
package mqtt
