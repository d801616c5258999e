package metrics

import (
	"math/big"
	"net/http"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farm_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "farm_api_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Ledger operations
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farm_operations_total",
			Help: "Total number of ledger operations",
		},
		[]string{"operation", "status"}, // status: "success", "error"
	)

	RewardsPaidTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farm_rewards_paid_tokens_total",
			Help: "Base reward paid out, in whole tokens (18 decimals)",
		},
		[]string{"pool"},
	)

	PoolTotalStaked = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "farm_pool_total_staked_tokens",
			Help: "Staked LP tokens per pool, in whole tokens (18 decimals)",
		},
		[]string{"pool", "lp_token"},
	)

	PoolAllocPoints = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "farm_pool_alloc_points",
			Help: "Effective allocation points per pool",
		},
		[]string{"pool", "source"}, // source: "base", "vote"
	)

	TotalAllocPoints = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "farm_total_alloc_points",
			Help: "Sum of allocation points over all pools",
		},
	)

	// Voter
	VoterEpoch = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "farm_voter_epoch",
			Help: "Current voting epoch number",
		},
	)

	GaugeVotes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "farm_voter_gauge_votes",
			Help: "Votes received per gauge, in whole tokens (18 decimals)",
		},
		[]string{"lp_token"},
	)

	// Keeper
	KeeperCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farm_keeper_cycles_total",
			Help: "Total number of keeper cycles",
		},
		[]string{"status"},
	)

	KeeperCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "farm_keeper_cycle_duration_seconds",
			Help:    "Duration of keeper cycles in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
	)

	InvariantViolationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "farm_invariant_violations_total",
			Help: "Ledger invariant checks that failed",
		},
	)
)

// Middleware records HTTP metrics using the matched mux route template.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RecordOperation counts one ledger operation.
func RecordOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordCycle records one keeper cycle.
func RecordCycle(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	KeeperCyclesTotal.WithLabelValues(status).Inc()
	KeeperCycleDuration.Observe(duration.Seconds())
}

var weiPerToken = new(big.Float).SetFloat64(1e18)

// Tokens converts an 18-decimal amount to a float for gauges.
func Tokens(amount sdkmath.Int) float64 {
	if amount.IsNil() {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(amount.BigInt()), weiPerToken).Float64()
	return f
}
