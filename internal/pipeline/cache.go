package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Stage versions feed the cache fingerprint. Bump a version whenever the
// stage's prompt or output schema changes shape, so stale entries stop
// matching.
const (
	VersionAnalysis   = "analysis/v1"
	VersionExtraction = "extraction/v1"
	VersionTasks      = "tasks/v1"
	VersionGuidance   = "guidance/v1"
)

// Cache stores validated stage outputs keyed by fingerprint. A hit means
// the exact same stage version, model, and input were processed before,
// so the stored result can be served without an external call.
type Cache interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Put stores a value. Implementations apply their own TTL.
	Put(ctx context.Context, key, value string) error
}

// Fingerprint computes the cache key for one stage call. Any change to
// the stage version, serving model, or input content produces a new key.
func Fingerprint(stageVersion, model, content string) string {
	h := sha256.New()
	h.Write([]byte(stageVersion))
	h.Write([]byte{'\n'})
	h.Write([]byte(model))
	h.Write([]byte{'\n'})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

type memoryEntry struct {
	value    string
	storedAt time.Time
}

// MemoryCache is an in-process Cache with TTL expiry. It serves single
// runs and tests; cross-run caching uses the database-backed cache.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache returns an empty cache. A zero or negative TTL means
// entries never expire.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

// Put stores value under key, resetting its TTL clock.
func (c *MemoryCache) Put(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{value: value, storedAt: c.now()}
	return nil
}

// Len reports the number of live entries, counting expired ones that
// have not been read yet.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
