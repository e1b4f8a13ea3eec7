package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/api/source", "/api/source"},
		{"/api/reports/6f1c2a4e-8d0b-4b7e-9a3f-2c1d5e6f7a8b", "/api/reports/{id}"},
		{"/api/contracts/0x5FbDB2315678afecb367f032d93F642f64180aa3/", "/api/contracts/{id}"},
		{"/api/chains/56", "/api/chains/{id}"},
		{"/wp-admin", "/wp-admin"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.path))
		})
	}
}

func TestRecordersNoopWhenDisabled(t *testing.T) {
	enabled = false
	assert.NotPanics(t, func() {
		RPCCall("ethereum", "eth_getCode", "success", 0)
		RPCCacheLookup(true)
		ExplorerCall("ethereum", "getsourcecode", "error", 0)
		SolanaAttempt("indexer", "skip")
		ProxyResolution("None")
		SourceFetch("evm", "success")
		AnalysisRun("openai", "error")
		SnapshotLookup(false)
	})
	assert.False(t, Enabled())
}

func TestStatusRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	rec.WriteHeader(http.StatusNotFound)
	_, _ = rec.Write([]byte(`{"error":"not found",`))
	_, _ = rec.Write([]byte(`"code":"NOT_FOUND"}`))

	assert.Equal(t, http.StatusNotFound, rec.status)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, w.Body.Len(), rec.written)
}

func TestMiddlewarePassthroughWhenDisabled(t *testing.T) {
	enabled = false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	Middleware(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chains", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}
