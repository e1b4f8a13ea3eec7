package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/contractlens/internal/auth"
	"github.com/pendergraft/contractlens/internal/config"
	"github.com/pendergraft/contractlens/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Storage: config.StorageConfig{
			Type:   "sqlite",
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
		},
		Auth:     config.AuthConfig{Type: auth.TypeAPIKey},
		Security: config.SecurityConfig{FilterEnabled: true, MaxBodySizeMB: 1},
		RPC:      config.RPCConfig{Attempts: 1},
		Solana: config.SolanaConfig{
			IndexerURL: "https://pro-api.solscan.io/v2.0",
			MirrorURL:  "https://public-api.solscan.io",
			WebURL:     "https://solscan.io",
		},
		Analysis: config.AnalysisConfig{
			DefaultProvider: "openai",
			Attempts:        1,
			Providers:       map[string]config.ProviderConfig{"openai": {BaseURL: "http://127.0.0.1:1"}},
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, storage.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := storage.New(cfg.Storage, logger)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { store.Close() })

	p, err := NewPipeline(cfg, nil, logger)
	require.NoError(t, err)
	t.Cleanup(p.Close)

	return New(cfg, store, p, logger), store
}

func do(h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	for _, p := range []string{"/health", "/healthz", "/readyz"} {
		rec := do(s.Handler(), http.MethodGet, p, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, p)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, float64(8), body["chains"])
	}
}

func TestChainsRoute(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	rec := do(s.Handler(), http.MethodGet, "/api/chains", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ethereum"`)
	assert.Contains(t, rec.Body.String(), `"solana"`)
}

func TestSourceValidation(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	rec := do(s.Handler(), http.MethodGet, "/api/source?chain=ethereum", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_PARAMETER")

	rec = do(s.Handler(), http.MethodGet, "/api/source?chain=nope&address=0xdAC17F958D2ee523a2206206994597C13D831ec7", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNKNOWN_CHAIN")
}

func TestRelayRejectsUnlistedHost(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	rec := do(s.Handler(), http.MethodGet, "/api/proxy?url=https://evil.example.com/x", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRelayHosts(t *testing.T) {
	cfg := testConfig(t)
	s, _ := newTestServer(t, cfg)

	hosts := RelayHosts(cfg, s.pipeline.Registry)
	assert.Contains(t, hosts, "https://public-api.solscan.io")
	assert.True(t, s.relay.Allowed("api.etherscan.io"))
	assert.True(t, s.relay.Allowed("pro-api.solscan.io"))
	assert.False(t, s.relay.Allowed("example.com"))
}

func TestAnalyzeRequiresAPIKey(t *testing.T) {
	s, store := newTestServer(t, testConfig(t))

	rec := do(s.Handler(), http.MethodPost, "/api/analyze", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")

	key, err := store.CreateAPIKey(context.Background(), "test")
	require.NoError(t, err)

	rec = do(s.Handler(), http.MethodPost, "/api/analyze", `not json`, map[string]string{"X-API-Key": key})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_BODY")
}

func TestAnalyzeOpenWhenAuthDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Type = "none"
	s, _ := newTestServer(t, cfg)

	rec := do(s.Handler(), http.MethodPost, "/api/analyze", `{"provider":"unknown"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNKNOWN_PROVIDER")
}

func TestReportNotFound(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	rec := do(s.Handler(), http.MethodGet, "/api/reports/00000000-0000-0000-0000-000000000000", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListReportsRoute(t *testing.T) {
	s, store := newTestServer(t, testConfig(t))
	const addr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

	rec := do(s.Handler(), http.MethodGet, "/api/reports?chain=ethereum&address="+addr, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())

	require.NoError(t, store.CreateReport(context.Background(), &storage.Report{
		Chain:    "ethereum",
		Address:  addr,
		Provider: "openai",
		Model:    "gpt-4o-mini",
		Language: "english",
		Content:  "# Audit",
	}))

	rec = do(s.Handler(), http.MethodGet, "/api/reports?chain=Ethereum&address="+strings.ToLower(addr), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []struct {
			ID      string `json:"id"`
			Address string `json:"address"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, addr, body.Data[0].Address)

	rec = do(s.Handler(), http.MethodGet, "/api/reports?chain=ethereum", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMiddlewareStack(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	rec := do(s.Handler(), http.MethodGet, "/.env", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s.Handler(), http.MethodOptions, "/api/source", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(s.Handler(), http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
