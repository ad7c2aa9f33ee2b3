// Package metrics exposes Prometheus instrumentation for the bot: counters
// for moderation rule hits and pairing outcomes, gauges for queue depth and
// active conversation channels.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesTotal counts processed messages, labeled by the filter verdict:
	// "allow", "deleted", "muted", "banned".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lonelybot_messages_total",
		Help: "Total number of messages processed by the moderation filter",
	}, []string{"action"})

	// RuleHitsTotal counts which moderation rule fired.
	RuleHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lonelybot_rule_hits_total",
		Help: "Total number of moderation rule triggers",
	}, []string{"rule"})

	// QueueDepth tracks the number of users waiting to be paired.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lonelybot_queue_depth",
		Help: "Current number of users in the matchmaking queue",
	})

	// ActiveSessions tracks live conversation channels.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lonelybot_active_sessions",
		Help: "Current number of live pairing sessions",
	})

	// PairOutcomesTotal counts terminal session outcomes: "accepted",
	// "declined", "accept_timeout", "safety_timeout", "closed", "expired",
	// "external_delete".
	PairOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lonelybot_pair_outcomes_total",
		Help: "Total number of pairing session outcomes",
	}, []string{"outcome"})

	// MutesTotal counts applied mutes labeled by cause.
	MutesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lonelybot_mutes_total",
		Help: "Total number of mutes applied",
	}, []string{"cause"})
)

func init() {
	prometheus.MustRegister(MessagesTotal, RuleHitsTotal, QueueDepth, ActiveSessions, PairOutcomesTotal, MutesTotal)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
