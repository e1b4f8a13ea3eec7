package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

// runStoreSuite exercises the behaviour every Store implementation shares.
func runStoreSuite(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("SnapshotRoundTrip", func(t *testing.T) {
		snap := &Snapshot{Chain: "ethereum", Address: "0xabc", Data: []byte(`{"files":[]}`)}
		if err := store.PutSnapshot(ctx, snap); err != nil {
			t.Fatalf("PutSnapshot() error = %v", err)
		}
		if snap.ContentHash == "" {
			t.Error("PutSnapshot() did not set ContentHash")
		}

		got, err := store.GetSnapshot(ctx, "ethereum", "0xabc", time.Hour)
		if err != nil {
			t.Fatalf("GetSnapshot() error = %v", err)
		}
		if string(got.Data) != `{"files":[]}` {
			t.Errorf("GetSnapshot().Data = %s", got.Data)
		}
		if got.ContentHash != snap.ContentHash {
			t.Errorf("GetSnapshot().ContentHash = %v, want %v", got.ContentHash, snap.ContentHash)
		}
	})

	t.Run("SnapshotReplace", func(t *testing.T) {
		if err := store.PutSnapshot(ctx, &Snapshot{Chain: "bsc", Address: "0x1", Data: []byte("old")}); err != nil {
			t.Fatalf("PutSnapshot() error = %v", err)
		}
		if err := store.PutSnapshot(ctx, &Snapshot{Chain: "bsc", Address: "0x1", Data: []byte("new")}); err != nil {
			t.Fatalf("PutSnapshot() error = %v", err)
		}

		got, err := store.GetSnapshot(ctx, "bsc", "0x1", 0)
		if err != nil {
			t.Fatalf("GetSnapshot() error = %v", err)
		}
		if string(got.Data) != "new" {
			t.Errorf("GetSnapshot().Data = %s, want new", got.Data)
		}
	})

	t.Run("SnapshotExpired", func(t *testing.T) {
		old := &Snapshot{Chain: "polygon", Address: "0x2", Data: []byte("x"), FetchedAt: time.Now().Add(-2 * time.Hour)}
		if err := store.PutSnapshot(ctx, old); err != nil {
			t.Fatalf("PutSnapshot() error = %v", err)
		}

		_, err := store.GetSnapshot(ctx, "polygon", "0x2", time.Hour)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GetSnapshot() error = %v, want ErrNotFound", err)
		}

		// no age limit
		if _, err := store.GetSnapshot(ctx, "polygon", "0x2", 0); err != nil {
			t.Errorf("GetSnapshot() without maxAge error = %v", err)
		}
	})

	t.Run("SnapshotMissing", func(t *testing.T) {
		_, err := store.GetSnapshot(ctx, "ethereum", "0xmissing", 0)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GetSnapshot() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("PruneSnapshots", func(t *testing.T) {
		stale := &Snapshot{Chain: "base", Address: "0x3", Data: []byte("x"), FetchedAt: time.Now().Add(-48 * time.Hour)}
		if err := store.PutSnapshot(ctx, stale); err != nil {
			t.Fatalf("PutSnapshot() error = %v", err)
		}

		n, err := store.PruneSnapshots(ctx, time.Now().Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("PruneSnapshots() error = %v", err)
		}
		if n < 1 {
			t.Errorf("PruneSnapshots() = %d, want at least 1", n)
		}
		if _, err := store.GetSnapshot(ctx, "base", "0x3", 0); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetSnapshot() after prune error = %v, want ErrNotFound", err)
		}
		if _, err := store.GetSnapshot(ctx, "ethereum", "0xabc", 0); err != nil {
			t.Errorf("fresh snapshot pruned: %v", err)
		}
	})

	t.Run("Reports", func(t *testing.T) {
		first := &Report{Chain: "ethereum", Address: "0xabc", Provider: "openai", Model: "gpt-4o-mini", Language: "english", Content: "# first"}
		if err := store.CreateReport(ctx, first); err != nil {
			t.Fatalf("CreateReport() error = %v", err)
		}
		if first.ID == "" {
			t.Fatal("CreateReport() did not assign an ID")
		}
		second := &Report{Chain: "ethereum", Address: "0xabc", Provider: "deepseek", Model: "deepseek-chat", Language: "english", Content: "# second"}
		if err := store.CreateReport(ctx, second); err != nil {
			t.Fatalf("CreateReport() error = %v", err)
		}

		got, err := store.GetReport(ctx, first.ID)
		if err != nil {
			t.Fatalf("GetReport() error = %v", err)
		}
		if got.Content != "# first" || got.Provider != "openai" {
			t.Errorf("GetReport() = %+v", got)
		}
		if got.CreatedAt == "" {
			t.Error("GetReport().CreatedAt is empty")
		}

		list, err := store.ListReports(ctx, "ethereum", "0xabc", 10)
		if err != nil {
			t.Fatalf("ListReports() error = %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("ListReports() returned %d reports, want 2", len(list))
		}
		if list[0].ID != second.ID {
			t.Errorf("ListReports()[0] = %v, want newest %v", list[0].ID, second.ID)
		}

		if _, err := store.GetReport(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetReport() missing error = %v, want ErrNotFound", err)
		}
	})

	t.Run("APIKeys", func(t *testing.T) {
		key, err := store.CreateAPIKey(ctx, "ci")
		if err != nil {
			t.Fatalf("CreateAPIKey() error = %v", err)
		}

		ak, err := store.ValidateAPIKey(ctx, key)
		if err != nil {
			t.Fatalf("ValidateAPIKey() error = %v", err)
		}
		if ak.Name != "ci" {
			t.Errorf("ValidateAPIKey().Name = %v, want ci", ak.Name)
		}

		keys, err := store.ListAPIKeys(ctx)
		if err != nil {
			t.Fatalf("ListAPIKeys() error = %v", err)
		}
		if len(keys) != 1 {
			t.Fatalf("ListAPIKeys() returned %d keys, want 1", len(keys))
		}

		if err := store.RevokeAPIKey(ctx, ak.ID); err != nil {
			t.Fatalf("RevokeAPIKey() error = %v", err)
		}
		if _, err := store.ValidateAPIKey(ctx, key); !errors.Is(err, ErrNotFound) {
			t.Errorf("ValidateAPIKey() after revoke error = %v, want ErrNotFound", err)
		}
		if err := store.RevokeAPIKey(ctx, ak.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("RevokeAPIKey() twice error = %v, want ErrNotFound", err)
		}
		if _, err := store.ValidateAPIKey(ctx, "cl_key_unknown"); !errors.Is(err, ErrNotFound) {
			t.Errorf("ValidateAPIKey() unknown error = %v, want ErrNotFound", err)
		}
	})
}
