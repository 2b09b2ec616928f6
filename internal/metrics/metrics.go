// Package metrics exposes prometheus/client_golang counters/gauges for
// frame traffic, pending-query outcomes, and scheduler activity, served
// over /metrics by the HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Metrics bundles every counter/gauge this controller exports.
type Metrics struct {
	FramesRxTotal      prometheus.Counter
	FramesTxTotal      prometheus.Counter
	FramesMalformed    prometheus.Counter
	PendingTimeouts    prometheus.Counter
	PendingDuplicates  prometheus.Counter
	SchedulerJobsFired prometheus.Counter
	PendingQueueSize   prometheus.Gauge
}

// New registers and returns the controller's metric set on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesRxTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caniotd_frames_rx_total",
			Help: "Total CAN frames received from the bus.",
		}),
		FramesTxTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caniotd_frames_tx_total",
			Help: "Total CAN frames transmitted to the bus.",
		}),
		FramesMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caniotd_frames_malformed_total",
			Help: "Total inbound frames dropped due to decode failure.",
		}),
		PendingTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caniotd_pending_query_timeouts_total",
			Help: "Total pending queries that timed out waiting for a response.",
		}),
		PendingDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caniotd_pending_query_duplicates_total",
			Help: "Total pending queries rejected as undifferentiable.",
		}),
		SchedulerJobsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caniotd_scheduler_jobs_fired_total",
			Help: "Total scheduled jobs that fired.",
		}),
		PendingQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "caniotd_pending_query_queue_size",
			Help: "Current number of outstanding pending queries.",
		}),
	}

	reg.MustRegister(
		m.FramesRxTotal,
		m.FramesTxTotal,
		m.FramesMalformed,
		m.PendingTimeouts,
		m.PendingDuplicates,
		m.SchedulerJobsFired,
		m.PendingQueueSize,
	)

	return m
}

// Handler returns the HTTP handler serving the registered metrics.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
