//go:build e2e

package e2e

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pendergraft/contractlens/internal/config"
	"github.com/pendergraft/contractlens/internal/server"
	"github.com/pendergraft/contractlens/internal/storage"
	"github.com/pendergraft/contractlens/pkg/client"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
	Upstreams         *Upstreams
	ChainsFile        string
	TestServer        *httptest.Server
	Pipeline          *server.Pipeline
	Store             storage.Store
}

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("contractlens"),
		postgres.WithUsername("contractlens"),
		postgres.WithPassword("contractlens"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return postgresContainer, connString, nil
}

// testConfig is the server configuration shared by every e2e test. Only
// ethereum is redirected to the fakes; Solana sources stay unused.
func testConfig(connString, chainsFile string, up *Upstreams) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           8080,
			Host:           "0.0.0.0",
			RequestTimeout: 30,
			FanOutLimit:    4,
		},
		Storage: config.StorageConfig{
			Type: "postgres",
			Postgres: config.PostgresConfig{
				URL: connString,
			},
		},
		Auth:      config.AuthConfig{Type: "api-key"},
		Logging:   config.LoggingConfig{Level: "debug", Format: "text"},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Security:  config.SecurityConfig{FilterEnabled: true, MaxBodySizeMB: 2},
		Proxy:     config.ProxyConfig{TrustProxy: false},
		Chains:    config.ChainsConfig{File: chainsFile},
		RPC: config.RPCConfig{
			Attempts:     2,
			InitialDelay: 10 * time.Millisecond,
			Multiplier:   1.5,
			Timeout:      5 * time.Second,
			CacheTTL:     time.Minute,
			CacheSize:    100,
		},
		Explorer: config.ExplorerConfig{
			RequestsPerSecond: 100,
			Timeout:           5 * time.Second,
		},
		Solana: config.SolanaConfig{
			PreviewBytes:   64,
			RequestTimeout: 5 * time.Second,
		},
		Snapshots: config.SnapshotConfig{Enabled: true, TTL: time.Hour},
		Relay: config.RelayConfig{
			MaxBodyKB: 64,
			Timeout:   5 * time.Second,
		},
		Analysis: config.AnalysisConfig{
			DefaultProvider: "openai",
			DefaultModel:    "gpt-4o-mini",
			DefaultLanguage: "english",
			Attempts:        1,
			Timeout:         10 * time.Second,
			Providers: map[string]config.ProviderConfig{
				"openai": {BaseURL: up.LLM.URL + "/v1", APIKey: "sk-e2e"},
			},
		},
	}
}

// startServerE starts the contractlens server in-process
func startServerE(cfg *config.Config) (*httptest.Server, *server.Pipeline, storage.Store, error) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create store: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	pipeline, err := server.NewPipeline(cfg, store, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	srv := server.New(cfg, store, pipeline, logger)
	return httptest.NewServer(srv.Handler()), pipeline, store, nil
}

// newClient creates a new API client for the test server
func newClient(testServer *httptest.Server, apiKey string) *client.Client {
	return client.New(testServer.URL, apiKey)
}

// createTestAPIKey creates a test API key using the store directly
func createTestAPIKey(t *testing.T, store storage.Store, name string) string {
	key, err := store.CreateAPIKey(context.Background(), name)
	require.NoError(t, err, "Failed to create API key")
	return key
}

// assertHTTPError asserts that an error is an APIError with the expected status and code
func assertHTTPError(t *testing.T, err error, expectedStatus int, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "Error should be an APIError")
	require.Equal(t, expectedStatus, apiErr.Status, "Status mismatch")
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch")
}
