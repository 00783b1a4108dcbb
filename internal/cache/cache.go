// Package cache persists raw catalog records between runs so the tool
// survives API outages. Records age out in two stages: after the fresh
// TTL they stop short-circuiting the network, and after the stale TTL
// they stop serving as a fallback.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/AbstergoSweden/VeniceAI/internal/fsutil"
)

// Default TTLs. Fresh data skips the network entirely; stale data is
// served only after a live fetch has failed.
const (
	DefaultFreshTTL = 5 * time.Minute
	DefaultStaleTTL = 24 * time.Hour
)

// Store is a file-backed cache keyed by catalog partition. Age is
// derived from file modification time, so it survives process restarts
// without an explicit timestamp field.
type Store struct {
	dir      string
	freshTTL time.Duration
	staleTTL time.Duration
}

// New creates a Store rooted at dir. The directory is created lazily on
// the first write.
func New(dir string, freshTTL, staleTTL time.Duration) *Store {
	return &Store{dir: dir, freshTTL: freshTTL, staleTTL: staleTTL}
}

// Get returns the cached records for key and whether they are fresh.
// Records older than the fresh TTL but within the stale TTL come back
// with fresh=false as a diagnostic; callers wanting a degraded fallback
// must go through GetStale after a failed fetch. Absent, expired, or
// unreadable entries are a plain miss.
func (s *Store) Get(key string) ([]map[string]any, bool) {
	records, age, err := s.read(key)
	if err != nil {
		slog.Debug("cache miss", "key", key, "error", err)
		return nil, false
	}

	switch {
	case age <= s.freshTTL:
		slog.Debug("cache hit (fresh)", "key", key, "age", age)
		return records, true
	case age <= s.staleTTL:
		slog.Debug("cache hit (stale)", "key", key, "age", age)
		return records, false
	default:
		slog.Debug("cache expired", "key", key, "age", age)
		return nil, false
	}
}

// GetStale returns cached records within the stale TTL regardless of
// freshness, or nil. It is the explicit fallback path for a failed live
// fetch.
func (s *Store) GetStale(key string) []map[string]any {
	records, age, err := s.read(key)
	if err != nil {
		slog.Debug("stale cache miss", "key", key, "error", err)
		return nil
	}
	if age > s.staleTTL {
		return nil
	}
	return records
}

// Set persists records under key. Caching is best-effort: failures are
// logged and swallowed so they never fail the surrounding fetch.
func (s *Store) Set(key string, records []map[string]any) {
	data, err := json.Marshal(records)
	if err != nil {
		slog.Debug("cache write skipped", "key", key, "error", err)
		return
	}
	if err := fsutil.WriteFileAtomic(s.path(key), data, 0o644); err != nil {
		slog.Debug("cache write skipped", "key", key, "error", err)
		return
	}
	slog.Debug("cached", "key", key, "records", len(records))
}

// Clear removes the entire cache directory. Safe to call when no cache
// exists.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

func (s *Store) read(key string) ([]map[string]any, time.Duration, error) {
	path := s.path(key)
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	age := time.Since(info.ModTime())

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, 0, fmt.Errorf("decoding cache entry: %w", err)
	}
	return records, age, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}
