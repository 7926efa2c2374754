// Package metrics provides Prometheus instrumentation for the Veilchat
// server. It exposes gauges for connection, queue, and room counts, counters
// for message throughput, and a histogram for match wait time.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "veilchat_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// MessagesTotal counts messages processed, labeled by outcome:
	// "relayed", "filtered", or "limited".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "veilchat_messages_total",
		Help: "Total number of chat messages processed",
	}, []string{"type"})

	// MatchQueueSize tracks the current number of users waiting in the queue.
	MatchQueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "veilchat_match_queue_size",
		Help: "Current number of users in the matching queue",
	})

	// ActiveRooms tracks the current number of live chat rooms.
	ActiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "veilchat_active_rooms",
		Help: "Current number of active chat rooms",
	})

	// MatchDuration records the time from queue join to match found.
	MatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "veilchat_match_duration_seconds",
		Help:    "Time from queue join to match found",
		Buckets: []float64{1, 2, 5, 10, 15, 30, 60, 120, 300},
	})

	// ReportsTotal counts abuse reports filed.
	ReportsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "veilchat_reports_total",
		Help: "Total number of abuse reports filed",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		MessagesTotal,
		MatchQueueSize,
		ActiveRooms,
		MatchDuration,
		ReportsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
