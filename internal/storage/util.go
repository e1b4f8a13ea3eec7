package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// APIKeyPrefix marks keys issued by this server
const APIKeyPrefix = "cl_key_"

func newReportID() string {
	return uuid.NewString()
}

// sealSnapshot stamps the fetch time when unset and hashes the payload
func sealSnapshot(snap *Snapshot) {
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}
	sum := sha256.Sum256(snap.Data)
	snap.ContentHash = hex.EncodeToString(sum[:])
}

// expired reports whether a snapshot fetched at fetchedAt is older than
// maxAge. A zero maxAge never expires.
func expired(fetchedAt time.Time, maxAge time.Duration) bool {
	return maxAge > 0 && time.Since(fetchedAt) > maxAge
}

func newAPIKey() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return APIKeyPrefix + hex.EncodeToString(b)
}

// hashAPIKey hashes an API key for storage. Keys without the issued
// prefix hash to the empty string and never match a row.
func hashAPIKey(key string) string {
	if !strings.HasPrefix(key, APIKeyPrefix) {
		return ""
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
