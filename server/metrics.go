package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the ambient observability counter set, grounded in
// replay-api's and luxfi-consensus's direct use of client_golang. Purely
// additive telemetry — never consulted for matchmaking or rating
// decisions, and not the Non-goal'd rate limiting.
type Metrics struct {
	BattlesIssued   prometheus.Counter
	VotesAccepted   *prometheus.CounterVec
	ReplayedVotes   prometheus.Counter
	RatingUpdateSec prometheus.Histogram
}

// NewMetrics registers the arena's counters against the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		BattlesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arena_battles_issued_total",
			Help: "Battles issued via NEXT_BATTLE.",
		}),
		VotesAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_votes_accepted_total",
			Help: "Votes accepted via CAST_VOTE, by result.",
		}, []string{"result"}),
		ReplayedVotes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arena_votes_replayed_total",
			Help: "CAST_VOTE calls resolved via the idempotent replay path.",
		}),
		RatingUpdateSec: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "arena_rating_update_seconds",
			Help:    "Wall-clock duration of the vote-ingestion transaction.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
