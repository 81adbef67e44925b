package client

import (
	"time"

	"github.com/armon/go-metrics"
)

// Metric key prefixes, instrumented the way armon/go-metrics instruments
// the wider serf/consul agent stack's RPC layer.
var (
	metricKeyRegister  = []string{"rialto", "client", "register"}
	metricKeyReconnect = []string{"rialto", "client", "reconnect"}
	metricKeyPingAck   = []string{"rialto", "client", "ping", "ack"}
	metricKeyShmMapErr = []string{"rialto", "client", "shm", "map_error"}
)

func incrCounter(key []string) {
	metrics.IncrCounter(key, 1)
}

func measureSince(key []string, start time.Time) {
	metrics.MeasureSince(key, start)
}
