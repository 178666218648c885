// Package state persists the last-seen hash of every exported record so a
// later run can suppress unchanged rows.
//
// Storage is one JSON file per composite key under the state directory.
// Each file holds the record fields plus _hash (the stable content hash of
// the fields alone) and _ts (when the hash was last written).
package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cnpulse/internal/hashing"
)

// Store is a per-key JSON file state store.
//
// Concurrency: single writer per key. Callers must partition work so two
// goroutines never write the same key; the store itself does not lock, and
// concurrent writers to one key can lose an update. The crawl orchestrator
// guarantees this by funneling all records through one collector.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates the state directory if needed and returns a store.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Get returns the stored document for key, or nil when the key has no
// state. A corrupt or unreadable state file is treated as absent state —
// it forces a rewrite on the next PutIfChanged, never a failure.
func (s *Store) Get(key string) map[string]any {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("corrupt state file, treating as absent",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil
	}
	return doc
}

// PutIfChanged compares the stable hash of record against the stored hash
// for key. When the key is new or the hash differs it persists the record
// plus _hash and _ts and returns true. Otherwise it returns false and
// leaves the file untouched.
func (s *Store) PutIfChanged(key string, record map[string]any) (bool, error) {
	newHash := hashing.Stable(record)

	if current := s.Get(key); current != nil {
		if stored, _ := current["_hash"].(string); stored == newHash {
			return false, nil
		}
	}

	doc := make(map[string]any, len(record)+2)
	for k, v := range record {
		doc[k] = v
	}
	doc["_hash"] = newHash
	doc["_ts"] = time.Now().Unix()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to marshal state for %s: %w", key, err)
	}
	if err := os.WriteFile(s.path(key), data, 0644); err != nil {
		return false, fmt.Errorf("failed to write state for %s: %w", key, err)
	}
	return true, nil
}

// path maps a composite key to a filesystem-safe file name.
func (s *Store) path(key string) string {
	safe := strings.NewReplacer("/", "_", ":", "_", "\\", "_").Replace(key)
	return filepath.Join(s.dir, safe+".json")
}
