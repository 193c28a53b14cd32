package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(scanSessionsTotal, scanFramesTotal) }

var scanSessionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scan_sessions_total",
		Help: "Concluded scan sessions, labeled by outcome.",
	},
	[]string{"outcome"}, // approved, invalid, error, cancelled
)

var scanFramesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scan_frames_total",
		Help: "Frame polls by result.",
	},
	[]string{"result"}, // not_ready, no_code, decoded
)

func IncScanSession(outcome string) {
	scanSessionsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncFrame(result string) {
	scanFramesTotal.WithLabelValues(norm(result)).Inc()
}
