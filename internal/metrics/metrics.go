package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Check-in pipeline counters and histograms, partitioned by chain key.

var (
	// State machine
	CheckinAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Subsystem: "pipeline",
		Name:      "attempts_total",
		Help:      "Total check-in attempts started",
	}, []string{"chain"})

	CheckinOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Subsystem: "pipeline",
		Name:      "outcomes_total",
		Help:      "Terminal check-in outcomes by error kind (ok for success)",
	}, []string{"chain", "kind"})

	CheckinDuplicatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Subsystem: "pipeline",
		Name:      "duplicates_ignored_total",
		Help:      "Check-in invocations rejected by the busy guard",
	}, []string{"chain"})

	CheckinDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "checkin",
		Subsystem: "pipeline",
		Name:      "attempt_duration_seconds",
		Help:      "End-to-end check-in attempt duration",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"chain"})

	GuardWatchdogReleases = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "checkin",
		Subsystem: "pipeline",
		Name:      "guard_watchdog_releases_total",
		Help:      "Busy guard releases forced by the watchdog window",
	})

	EventParseFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Subsystem: "pipeline",
		Name:      "event_parse_fallbacks_total",
		Help:      "Receipts where the CheckedIn event was not decodable",
	}, []string{"chain"})

	// Wallet
	WalletConnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Subsystem: "wallet",
		Name:      "connects_total",
		Help:      "Wallet connect attempts by kind and result",
	}, []string{"kind", "result"})

	ChainSwitchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Subsystem: "wallet",
		Name:      "chain_switches_total",
		Help:      "Chain switch requests by result (switched, added, failed)",
	}, []string{"chain", "result"})

	// Ledger
	LedgerRemoteSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Subsystem: "ledger",
		Name:      "remote_sync_total",
		Help:      "Remote ledger upserts by result",
	}, []string{"result"})

	LedgerMergeAdoptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "checkin",
		Subsystem: "ledger",
		Name:      "merge_adoptions_total",
		Help:      "Reconciliations that adopted a larger remote credits value",
	})

	// Alerting
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Alerts delivered by channel and type",
	}, []string{"channel", "type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Alerts suppressed by the per-type cooldown",
	}, []string{"channel", "type"})

	// RPC
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Chain RPC calls by method and status classification",
	}, []string{"chain", "method", "status"})

	RPCRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkin",
		Subsystem: "rpc",
		Name:      "rate_limit_waits_total",
		Help:      "RPC calls delayed by the client-side rate limiter",
	}, []string{"chain"})
)
