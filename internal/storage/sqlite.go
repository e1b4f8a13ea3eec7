package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- Bundle snapshots
	CREATE TABLE IF NOT EXISTS snapshots (
		chain TEXT NOT NULL,
		address TEXT NOT NULL,
		data BLOB NOT NULL,
		content_hash TEXT NOT NULL,
		fetched_at INTEGER NOT NULL,
		PRIMARY KEY (chain, address)
	);

	-- Analysis reports
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		chain TEXT NOT NULL,
		address TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		language TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TEXT DEFAULT (datetime('now'))
	);

	-- API keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TEXT DEFAULT (datetime('now')),
		last_used_at TEXT,
		revoked_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_fetched_at ON snapshots(fetched_at);
	CREATE INDEX IF NOT EXISTS idx_reports_target ON reports(chain, address);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("database migrations complete")
	return nil
}

// GetSnapshot loads the snapshot for a chain and address
func (s *SQLiteStore) GetSnapshot(ctx context.Context, chain, address string, maxAge time.Duration) (*Snapshot, error) {
	snap := Snapshot{Chain: chain, Address: address}
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT data, content_hash, fetched_at FROM snapshots WHERE chain = ? AND address = ?",
		chain, address,
	).Scan(&snap.Data, &snap.ContentHash, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}

	snap.FetchedAt = time.Unix(fetchedAt, 0).UTC()
	if expired(snap.FetchedAt, maxAge) {
		return nil, ErrNotFound
	}
	return &snap, nil
}

// PutSnapshot inserts or replaces the snapshot for s.Chain and s.Address
func (s *SQLiteStore) PutSnapshot(ctx context.Context, snap *Snapshot) error {
	sealSnapshot(snap)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (chain, address, data, content_hash, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chain, address) DO UPDATE SET
			data = excluded.data,
			content_hash = excluded.content_hash,
			fetched_at = excluded.fetched_at
	`, snap.Chain, snap.Address, snap.Data, snap.ContentHash, snap.FetchedAt.Unix())
	if err != nil {
		return fmt.Errorf("storing snapshot: %w", err)
	}
	return nil
}

// PruneSnapshots deletes snapshots fetched before the cutoff
func (s *SQLiteStore) PruneSnapshots(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE fetched_at < ?", before.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	return res.RowsAffected()
}

// CreateReport stores an analysis report, assigning an ID when empty
func (s *SQLiteStore) CreateReport(ctx context.Context, r *Report) error {
	if r.ID == "" {
		r.ID = newReportID()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, chain, address, provider, model, language, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
	`, r.ID, r.Chain, r.Address, r.Provider, r.Model, r.Language, r.Content)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

// GetReport retrieves a report by ID
func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*Report, error) {
	var r Report
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chain, address, provider, model, language, content, created_at
		FROM reports WHERE id = ?
	`, id).Scan(&r.ID, &r.Chain, &r.Address, &r.Provider, &r.Model, &r.Language, &r.Content, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying report: %w", err)
	}
	return &r, nil
}

// ListReports lists the newest reports for a target
func (s *SQLiteStore) ListReports(ctx context.Context, chain, address string, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chain, address, provider, model, language, content, created_at
		FROM reports WHERE chain = ? AND address = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, chain, address, limit)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.Chain, &r.Address, &r.Provider, &r.Model, &r.Language, &r.Content, &r.CreatedAt); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// CreateAPIKey creates a new API key
func (s *SQLiteStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key := newAPIKey()
	hash := hashAPIKey(key)
	id := newReportID()
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name, created_at) VALUES (?, ?, ?, datetime('now'))", id, hash, name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *SQLiteStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	hash := hashAPIKey(key)
	var ak APIKey
	err := s.db.QueryRowContext(ctx, "SELECT id, key_hash, name, created_at FROM api_keys WHERE key_hash = ? AND revoked_at IS NULL", hash).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &ak.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = datetime('now') WHERE id = ?", ak.ID)
	return &ak, nil
}

// ListAPIKeys lists all active API keys
func (s *SQLiteStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, last_used_at FROM api_keys WHERE revoked_at IS NULL ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var lastUsed sql.NullString
		if err := rows.Scan(&k.ID, &k.Name, &k.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			k.LastUsedAt = lastUsed.String
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *SQLiteStore) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = datetime('now') WHERE id = ? AND revoked_at IS NULL", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
