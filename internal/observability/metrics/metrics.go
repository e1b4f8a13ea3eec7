// Package metrics provides Prometheus instrumentation for contractlens.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	httpResponseBytes *prometheus.HistogramVec

	// Upstream metrics
	rpcCallsTotal      *prometheus.CounterVec
	rpcCallDuration    *prometheus.HistogramVec
	rpcCacheTotal      *prometheus.CounterVec
	explorerCallsTotal *prometheus.CounterVec
	explorerDuration   *prometheus.HistogramVec

	// Pipeline metrics
	solanaAttemptsTotal   *prometheus.CounterVec
	proxyResolutionsTotal *prometheus.CounterVec
	sourceFetchTotal      *prometheus.CounterVec
	analysisRunsTotal     *prometheus.CounterVec
	snapshotLookupsTotal  *prometheus.CounterVec
)

// Init initializes the metrics system.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpResponseBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response body size in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
		[]string{"path"},
	)

	rpcCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpc_call_attempts_total",
			Help: "Total number of JSON-RPC call attempts",
		},
		[]string{"chain", "method", "result"},
	)

	rpcCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rpc_call_duration_seconds",
			Help:    "JSON-RPC call attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "method"},
	)

	rpcCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpc_cache_lookups_total",
			Help: "Total number of RPC cache lookups",
		},
		[]string{"result"},
	)

	explorerCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_calls_total",
			Help: "Total number of block explorer API calls",
		},
		[]string{"chain", "action", "result"},
	)

	explorerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "explorer_call_duration_seconds",
			Help:    "Block explorer API latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "action"},
	)

	solanaAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solana_source_attempts_total",
			Help: "Total number of Solana artifact source attempts",
		},
		[]string{"source", "result"},
	)

	proxyResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_resolutions_total",
			Help: "Total number of proxy resolutions by matched convention",
		},
		[]string{"convention"},
	)

	sourceFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_fetch_total",
			Help: "Total number of source fetches",
		},
		[]string{"kind", "result"},
	)

	analysisRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_runs_total",
			Help: "Total number of AI analysis runs",
		},
		[]string{"provider", "result"},
	)

	snapshotLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_lookups_total",
			Help: "Total number of bundle snapshot lookups",
		},
		[]string{"result"},
	)

	// Note: Go runtime metrics (goroutines, memory, GC) are automatically
	// collected by prometheus/client_golang - no custom collector needed
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
