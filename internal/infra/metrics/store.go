package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(storeOpLatencyMs, ticketsIssuedTotal, ticketsReconciledTotal) }

var storeOpLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ticket_store_op_duration_ms",
		Help:    "Ticket store call latency distribution in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 200, 400, 800, 1600, 3000},
	},
	[]string{"op", "success"}, // op: read, write, delete, transition, list
)

var ticketsIssuedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "tickets_issued_total",
		Help: "Tickets written to the Unused partition.",
	},
)

var ticketsReconciledTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "tickets_reconciled_total",
		Help: "Stale Unused entries removed because a Used entry already existed.",
	},
)

// ObserveStoreOp records one store call that started at start.
func ObserveStoreOp(op string, start time.Time, err error) {
	storeOpLatencyMs.WithLabelValues(norm(op), strconv.FormatBool(err == nil)).
		Observe(float64(time.Since(start).Microseconds()) / 1000)
}

func IncIssued() { ticketsIssuedTotal.Inc() }

func AddReconciled(n int) { ticketsReconciledTotal.Add(float64(n)) }
