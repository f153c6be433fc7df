// Package metrics provides Prometheus instrumentation for the pairing
// server. It exposes gauges for connection, queue, and pairing counts,
// counters for matching outcomes, and a histogram for time-to-match.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WSConnections tracks the current number of open WebSocket connections
	// on this transport instance.
	WSConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pairchat_ws_connections",
		Help: "Current number of open WebSocket connections",
	})

	// ConnectedUsers tracks live sessions known to the matching engine.
	ConnectedUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pairchat_connected_users",
		Help: "Current number of live sessions in the matching engine",
	})

	// QueueSize tracks users currently waiting for a partner.
	QueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pairchat_waiting_queue_size",
		Help: "Current number of users in the waiting queue",
	})

	// ActivePairs tracks currently connected conversation pairs.
	ActivePairs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pairchat_active_pairs",
		Help: "Current number of active conversation pairs",
	})

	// MatchesTotal counts successful pairings.
	MatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_matches_total",
		Help: "Total number of successful pairings",
	})

	// WaitTimeoutsTotal counts waiting-queue entries that hit their deadline.
	WaitTimeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_wait_timeouts_total",
		Help: "Total number of waiting-queue deadline expiries",
	})

	// RetryRequestsTotal counts client retry requests, labeled by outcome:
	// "scheduled" or "exhausted".
	RetryRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairchat_retry_requests_total",
		Help: "Total number of retry requests",
	}, []string{"outcome"})

	// MessagesRelayedTotal counts partner-to-partner relays, labeled by
	// kind: "message" or "typing".
	MessagesRelayedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairchat_messages_relayed_total",
		Help: "Total number of events relayed between partners",
	}, []string{"kind"})

	// MatchWaitSeconds records how long the matched candidate had been
	// waiting when the pairing was made.
	MatchWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pairchat_match_wait_seconds",
		Help:    "Candidate wait time at the moment of pairing",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 90, 120},
	})
)

func init() {
	prometheus.MustRegister(
		WSConnections,
		ConnectedUsers,
		QueueSize,
		ActivePairs,
		MatchesTotal,
		WaitTimeoutsTotal,
		RetryRequestsTotal,
		MessagesRelayedTotal,
		MatchWaitSeconds,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
