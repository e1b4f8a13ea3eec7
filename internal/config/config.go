package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the server
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig
	Proxy     ProxyConfig
	Metrics   MetricsConfig
	Chains    ChainsConfig
	RPC       RPCConfig
	Explorer  ExplorerConfig
	Solana    SolanaConfig
	Snapshots SnapshotConfig
	Relay     RelayConfig
	Analysis  AnalysisConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ReadTimeout    int // seconds
	WriteTimeout   int // seconds
	IdleTimeout    int // seconds
	RequestTimeout int // seconds
	FanOutLimit    int // concurrent chains in the cross-chain check
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type     string // "sqlite" or "postgres"
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	Type string // "none" or "api-key"
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	CleanupMinutes int
	// AnalyzePerMin applies on top of the global limit for /api/analyze
	AnalyzePerMin int
}

// SecurityConfig holds security filter settings
type SecurityConfig struct {
	FilterEnabled bool
	MaxBodySizeMB int
}

// ProxyConfig holds trusted proxy settings for X-Forwarded-For handling
type ProxyConfig struct {
	TrustProxy     bool
	TrustedProxies []string // CIDR notation
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool
}

// ChainsConfig points at an optional registry override file (.toml, .yaml, .yml)
type ChainsConfig struct {
	File string
}

// RPCConfig holds the JSON-RPC retry and cache policy
type RPCConfig struct {
	Attempts     int
	InitialDelay time.Duration
	Multiplier   float64
	Timeout      time.Duration
	CacheTTL     time.Duration
	CacheSize    int
}

// ExplorerConfig holds block explorer API settings
type ExplorerConfig struct {
	// APIKeys maps chain id to explorer API key. ETHERSCAN_API_KEY applies to
	// every chain that has no dedicated key.
	APIKeys           map[string]string
	DefaultAPIKey     string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// SolanaConfig holds the IDL fallback chain settings
type SolanaConfig struct {
	IndexerURL     string
	IndexerToken   string
	MirrorURL      string
	WebURL         string
	ScrapeEnabled  bool
	RPCEndpoints   []string
	PreviewBytes   int
	RequestTimeout time.Duration
}

// SnapshotConfig controls persisted bundle snapshots
type SnapshotConfig struct {
	Enabled bool
	TTL     time.Duration
}

// RelayConfig controls the /api/proxy relay
type RelayConfig struct {
	AllowedHosts []string
	MaxBodyKB    int
	Timeout      time.Duration
}

// AnalysisConfig holds AI provider settings
type AnalysisConfig struct {
	DefaultProvider string
	DefaultModel    string
	DefaultLanguage string
	Attempts        int
	Timeout         time.Duration
	Providers       map[string]ProviderConfig
}

// ProviderConfig describes one OpenAI-compatible chat completion endpoint
type ProviderConfig struct {
	BaseURL string
	APIKey  string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first; variables already set take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvInt("PORT", 8080),
			Host:           getEnv("HOST", "0.0.0.0"),
			ReadTimeout:    getEnvInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout:   getEnvInt("SERVER_WRITE_TIMEOUT", 180),
			IdleTimeout:    getEnvInt("SERVER_IDLE_TIMEOUT", 120),
			RequestTimeout: getEnvInt("SERVER_REQUEST_TIMEOUT", 60),
			FanOutLimit:    getEnvInt("FANOUT_LIMIT", 8),
		},
		Storage: StorageConfig{
			Type: getEnv("STORAGE_TYPE", "sqlite"),
			Postgres: PostgresConfig{
				URL: getEnv("DATABASE_URL", ""),
			},
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "./data/contractlens.db"),
			},
		},
		Auth: AuthConfig{
			Type: getEnv("AUTH_TYPE", "none"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin: getEnvInt("RATE_LIMIT_RPM", 120),
			BurstSize:      getEnvInt("RATE_LIMIT_BURST", 30),
			CleanupMinutes: getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", 10),
			AnalyzePerMin:  getEnvInt("RATE_LIMIT_ANALYZE_RPM", 6),
		},
		Security: SecurityConfig{
			FilterEnabled: getEnvBool("SECURITY_FILTER_ENABLED", true),
			MaxBodySizeMB: getEnvInt("SECURITY_MAX_BODY_SIZE_MB", 2),
		},
		Proxy: ProxyConfig{
			TrustProxy:     getEnvBool("TRUST_PROXY", false),
			TrustedProxies: getEnvStringSlice("TRUSTED_PROXIES", []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
		Chains: ChainsConfig{
			File: getEnv("CHAINS_FILE", ""),
		},
		RPC: RPCConfig{
			Attempts:     getEnvInt("RPC_ATTEMPTS", 3),
			InitialDelay: getEnvDuration("RPC_INITIAL_DELAY", time.Second),
			Multiplier:   getEnvFloat("RPC_BACKOFF_MULTIPLIER", 1.5),
			Timeout:      getEnvDuration("RPC_TIMEOUT", 15*time.Second),
			CacheTTL:     getEnvDuration("RPC_CACHE_TTL", 5*time.Minute),
			CacheSize:    getEnvInt("RPC_CACHE_SIZE", 100),
		},
		Explorer: ExplorerConfig{
			APIKeys:           getEnvMap("EXPLORER_API_KEYS"),
			DefaultAPIKey:     getEnv("ETHERSCAN_API_KEY", ""),
			RequestsPerSecond: getEnvFloat("EXPLORER_RPS", 5),
			Timeout:           getEnvDuration("EXPLORER_TIMEOUT", 20*time.Second),
		},
		Solana: SolanaConfig{
			IndexerURL:     getEnv("SOLANA_INDEXER_URL", "https://pro-api.solscan.io/v2.0"),
			IndexerToken:   getEnv("SOLSCAN_API_TOKEN", ""),
			MirrorURL:      getEnv("SOLANA_MIRROR_URL", "https://public-api.solscan.io"),
			WebURL:         getEnv("SOLANA_WEB_URL", "https://solscan.io"),
			ScrapeEnabled:  getEnvBool("SOLANA_SCRAPE_ENABLED", true),
			RPCEndpoints:   getEnvStringSlice("SOLANA_RPC_ENDPOINTS", nil),
			PreviewBytes:   getEnvInt("SOLANA_PREVIEW_BYTES", 64),
			RequestTimeout: getEnvDuration("SOLANA_REQUEST_TIMEOUT", 15*time.Second),
		},
		Snapshots: SnapshotConfig{
			Enabled: getEnvBool("SNAPSHOTS_ENABLED", false),
			TTL:     getEnvDuration("SNAPSHOTS_TTL", 24*time.Hour),
		},
		Relay: RelayConfig{
			AllowedHosts: getEnvStringSlice("RELAY_ALLOWED_HOSTS", nil),
			MaxBodyKB:    getEnvInt("RELAY_MAX_BODY_KB", 4096),
			Timeout:      getEnvDuration("RELAY_TIMEOUT", 20*time.Second),
		},
		Analysis: AnalysisConfig{
			DefaultProvider: getEnv("AI_PROVIDER", "openai"),
			DefaultModel:    getEnv("AI_MODEL", "gpt-4o-mini"),
			DefaultLanguage: getEnv("AI_LANGUAGE", "english"),
			Attempts:        getEnvInt("AI_ATTEMPTS", 3),
			Timeout:         getEnvDuration("AI_TIMEOUT", 120*time.Second),
			Providers: map[string]ProviderConfig{
				"openai": {
					BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
					APIKey:  getEnv("OPENAI_API_KEY", ""),
				},
				"deepseek": {
					BaseURL: getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
					APIKey:  getEnv("DEEPSEEK_API_KEY", ""),
				},
				"local": {
					BaseURL: getEnv("LOCAL_LLM_BASE_URL", "http://localhost:11434/v1"),
				},
			},
		},
	}

	// If DATABASE_URL is set, default to postgres
	if cfg.Storage.Postgres.URL != "" && cfg.Storage.Type == "sqlite" {
		cfg.Storage.Type = "postgres"
	}

	return cfg, nil
}

// ExplorerKey returns the explorer API key for a chain id.
func (c ExplorerConfig) ExplorerKey(chainID string) string {
	if key, ok := c.APIKeys[chainID]; ok && key != "" {
		return key
	}
	return c.DefaultAPIKey
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// getEnvMap parses "k1=v1,k2=v2"
func getEnvMap(key string) map[string]string {
	result := make(map[string]string)
	for _, pair := range getEnvStringSlice(key, nil) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		result[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return result
}
