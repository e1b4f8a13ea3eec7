package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pendergraft/contractlens/internal/config"
)

// ErrNotFound is returned for missing snapshots, reports and keys. Expired
// snapshots and revoked keys count as missing.
var ErrNotFound = errors.New("not found")

// SnapshotStore persists assembled bundles keyed by (chain, address)
type SnapshotStore interface {
	// GetSnapshot returns ErrNotFound when no snapshot exists or the stored
	// one is older than maxAge. A zero maxAge disables the age check.
	GetSnapshot(ctx context.Context, chain, address string, maxAge time.Duration) (*Snapshot, error)
	PutSnapshot(ctx context.Context, s *Snapshot) error
	PruneSnapshots(ctx context.Context, before time.Time) (int64, error)
}

// ReportStore handles analysis report operations
type ReportStore interface {
	CreateReport(ctx context.Context, r *Report) error
	GetReport(ctx context.Context, id string) (*Report, error)
	ListReports(ctx context.Context, chain, address string, limit int) ([]Report, error)
}

// APIKeyStore handles API key operations
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, name string) (key string, err error)
	ValidateAPIKey(ctx context.Context, key string) (*APIKey, error)
	ListAPIKeys(ctx context.Context) ([]APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// Store combines all storage interfaces with lifecycle methods.
// Domain services define their own minimal interfaces based on their actual usage.
type Store interface {
	SnapshotStore
	ReportStore
	APIKeyStore

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Snapshot is a serialized bundle captured at FetchedAt
type Snapshot struct {
	Chain       string
	Address     string
	Data        []byte
	ContentHash string
	FetchedAt   time.Time
}

// Report is a stored AI analysis
type Report struct {
	ID        string
	Chain     string
	Address   string
	Provider  string
	Model     string
	Language  string
	Content   string
	CreatedAt string
}

// APIKey represents an API key
type APIKey struct {
	ID         string
	Name       string
	KeyHash    string
	CreatedAt  string
	LastUsedAt string
	RevokedAt  string
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

