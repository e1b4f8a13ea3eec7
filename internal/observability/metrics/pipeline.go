package metrics

import "time"

// RPCCall records one JSON-RPC call attempt.
func RPCCall(chain, method, result string, d time.Duration) {
	if !enabled {
		return
	}
	rpcCallsTotal.WithLabelValues(chain, method, result).Inc()
	rpcCallDuration.WithLabelValues(chain, method).Observe(d.Seconds())
}

// RPCCacheLookup records an RPC cache hit or miss.
func RPCCacheLookup(hit bool) {
	if !enabled {
		return
	}
	rpcCacheTotal.WithLabelValues(hitLabel(hit)).Inc()
}

// ExplorerCall records one block explorer API call.
func ExplorerCall(chain, action, result string, d time.Duration) {
	if !enabled {
		return
	}
	explorerCallsTotal.WithLabelValues(chain, action, result).Inc()
	explorerDuration.WithLabelValues(chain, action).Observe(d.Seconds())
}

// SolanaAttempt records one step of the Solana fallback chain.
func SolanaAttempt(source, result string) {
	if !enabled {
		return
	}
	solanaAttemptsTotal.WithLabelValues(source, result).Inc()
}

// ProxyResolution records the convention matched by the proxy resolver.
func ProxyResolution(convention string) {
	if !enabled {
		return
	}
	proxyResolutionsTotal.WithLabelValues(convention).Inc()
}

// SourceFetch records a source fetch by chain kind.
func SourceFetch(kind, result string) {
	if !enabled {
		return
	}
	sourceFetchTotal.WithLabelValues(kind, result).Inc()
}

// AnalysisRun records an AI analysis run.
func AnalysisRun(provider, result string) {
	if !enabled {
		return
	}
	analysisRunsTotal.WithLabelValues(provider, result).Inc()
}

// SnapshotLookup records a snapshot store hit or miss.
func SnapshotLookup(hit bool) {
	if !enabled {
		return
	}
	snapshotLookupsTotal.WithLabelValues(hitLabel(hit)).Inc()
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
