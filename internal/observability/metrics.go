// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// RPC access layer
	RPCAttempts       *prometheus.CounterVec
	EndpointRotations prometheus.Counter
	RetryBackoffs     prometheus.Counter
	PoolExhaustions   prometheus.Counter

	// Discovery and decoding
	ScansTotal          *prometheus.CounterVec
	FastPathFallbacks   prometheus.Counter
	PositionsDiscovered prometheus.Counter
	DecodeErrors        *prometheus.CounterVec

	// Recheck job
	RecheckRuns           prometheus.Counter
	RecheckWalletErrors   prometheus.Counter
	RecheckDuration       prometheus.Histogram
	LastSuccessfulRecheck prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "clmm_eligibility"
	}

	return &Metrics{
		RPCAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "attempts_total",
			Help:      "Total RPC attempts by method and outcome",
		}, []string{"method", "outcome"}),
		EndpointRotations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "endpoint_rotations_total",
			Help:      "Total endpoint rotations after per-endpoint exhaustion",
		}),
		RetryBackoffs: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "retry_backoffs_total",
			Help:      "Total backoff waits before a same-endpoint retry",
		}),
		PoolExhaustions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "pool_exhaustions_total",
			Help:      "Total requests that exhausted every endpoint",
		}),

		ScansTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "scans_total",
			Help:      "Total wallet scans by result",
		}, []string{"result"}),
		FastPathFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "fast_path_fallbacks_total",
			Help:      "Total fast-path scans abandoned for the derived-address path",
		}),
		PositionsDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "positions_discovered_total",
			Help:      "Total positions matched against the target pool",
		}),
		DecodeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "decode_errors_total",
			Help:      "Total skipped accounts by payload kind",
		}, []string{"kind"}),

		RecheckRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recheck",
			Name:      "runs_total",
			Help:      "Total batch recheck runs",
		}),
		RecheckWalletErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recheck",
			Name:      "wallet_errors_total",
			Help:      "Total wallets skipped in a recheck run due to errors",
		}),
		RecheckDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recheck",
			Name:      "duration_seconds",
			Help:      "Duration of batch recheck runs",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		LastSuccessfulRecheck: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "recheck",
			Name:      "last_successful_run_timestamp_seconds",
			Help:      "Unix timestamp of the last successful recheck run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
