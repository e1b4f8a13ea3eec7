package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		chain TEXT NOT NULL,
		address TEXT NOT NULL,
		data BYTEA NOT NULL,
		content_hash TEXT NOT NULL,
		fetched_at BIGINT NOT NULL,
		PRIMARY KEY (chain, address)
	);

	CREATE TABLE IF NOT EXISTS reports (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		chain TEXT NOT NULL,
		address TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		language TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		last_used_at TIMESTAMPTZ,
		revoked_at TIMESTAMPTZ
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
func (s *PostgresStore) GetSnapshot(ctx context.Context, chain, address string, maxAge time.Duration) (*Snapshot, error) {
	snap := Snapshot{Chain: chain, Address: address}
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT data, content_hash, fetched_at FROM snapshots WHERE chain = $1 AND address = $2",
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
func (s *PostgresStore) PutSnapshot(ctx context.Context, snap *Snapshot) error {
	sealSnapshot(snap)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (chain, address, data, content_hash, fetched_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chain, address) DO UPDATE SET
			data = EXCLUDED.data,
			content_hash = EXCLUDED.content_hash,
			fetched_at = EXCLUDED.fetched_at
	`, snap.Chain, snap.Address, snap.Data, snap.ContentHash, snap.FetchedAt.Unix())
	if err != nil {
		return fmt.Errorf("storing snapshot: %w", err)
	}
	return nil
}

// PruneSnapshots deletes snapshots fetched before the cutoff
func (s *PostgresStore) PruneSnapshots(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE fetched_at < $1", before.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	return res.RowsAffected()
}

// CreateReport stores an analysis report, assigning an ID when empty
func (s *PostgresStore) CreateReport(ctx context.Context, r *Report) error {
	if r.ID == "" {
		r.ID = newReportID()
	}

	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO reports (id, chain, address, provider, model, language, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, r.ID, r.Chain, r.Address, r.Provider, r.Model, r.Language, r.Content).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	r.CreatedAt = createdAt.Format("2006-01-02 15:04:05")
	return nil
}

// GetReport retrieves a report by ID
func (s *PostgresStore) GetReport(ctx context.Context, id string) (*Report, error) {
	var r Report
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chain, address, provider, model, language, content, created_at
		FROM reports WHERE id::text = $1
	`, id).Scan(&r.ID, &r.Chain, &r.Address, &r.Provider, &r.Model, &r.Language, &r.Content, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying report: %w", err)
	}
	r.CreatedAt = createdAt.Format("2006-01-02 15:04:05")
	return &r, nil
}

// ListReports lists the newest reports for a target
func (s *PostgresStore) ListReports(ctx context.Context, chain, address string, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chain, address, provider, model, language, content, created_at
		FROM reports WHERE chain = $1 AND address = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, chain, address, limit)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		var createdAt time.Time
		if err := rows.Scan(&r.ID, &r.Chain, &r.Address, &r.Provider, &r.Model, &r.Language, &r.Content, &createdAt); err != nil {
			return nil, err
		}
		r.CreatedAt = createdAt.Format("2006-01-02 15:04:05")
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// CreateAPIKey creates a new API key
func (s *PostgresStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key := newAPIKey()
	hash := hashAPIKey(key)
	id := newReportID()
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name) VALUES ($1, $2, $3)", id, hash, name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *PostgresStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	hash := hashAPIKey(key)
	var ak APIKey
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, "SELECT id, key_hash, name, created_at FROM api_keys WHERE key_hash = $1 AND revoked_at IS NULL", hash).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ak.CreatedAt = createdAt.Format("2006-01-02 15:04:05")
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = NOW() WHERE id = $1", ak.ID)
	return &ak, nil
}

// ListAPIKeys lists all active API keys
func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, last_used_at FROM api_keys WHERE revoked_at IS NULL ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var createdAt time.Time
		var lastUsed sql.NullTime
		if err := rows.Scan(&k.ID, &k.Name, &createdAt, &lastUsed); err != nil {
			return nil, err
		}
		k.CreatedAt = createdAt.Format("2006-01-02 15:04:05")
		if lastUsed.Valid {
			k.LastUsedAt = lastUsed.Time.Format("2006-01-02 15:04:05")
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = NOW() WHERE id::text = $1 AND revoked_at IS NULL", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
