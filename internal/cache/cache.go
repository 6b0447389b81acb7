package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultTTL is the maximum age after which an entry is treated as absent.
const DefaultTTL = 24 * time.Hour

// Key computes the stable cache key for a piece of content: the SHA-256
// hex digest of the raw text. The digest is stable across runs, unlike a
// process-lifetime hash.
func Key(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// entry is the persisted form of a cached value.
type entry[T any] struct {
	Value     T         `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Cache is a TTL-governed content-addressed cache backed by a single JSON
// file. The in-memory map is authoritative; every mutation rewrites the
// backing file through a temp-file rename so concurrent writers cannot
// interleave partial writes. Expired entries are treated as absent on
// read but are only removed by Clear or ExpireStale.
type Cache[T any] struct {
	mu      sync.Mutex
	path    string
	ttl     time.Duration
	entries map[string]entry[T]
	now     func() time.Time
	logger  *log.Logger
}

// New opens the cache backed by the given file, loading any existing
// entries. A missing file is an empty cache; an unreadable or corrupt
// file is logged and likewise treated as empty.
func New[T any](path string, ttl time.Duration) *Cache[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache[T]{
		path:   path,
		ttl:    ttl,
		now:    time.Now,
		logger: log.New(os.Stderr, "[CACHE] ", log.LstdFlags),
	}
	c.entries = c.load()
	return c
}

// load reads the backing file, failing open to an empty map.
func (c *Cache[T]) load() map[string]entry[T] {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Printf("read %s: %v (starting empty)", c.path, err)
		}
		return make(map[string]entry[T])
	}
	entries := make(map[string]entry[T])
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Printf("parse %s: %v (starting empty)", c.path, err)
		return make(map[string]entry[T])
	}
	return entries
}

// Get returns the value for key if present and younger than the TTL.
// Expired entries are reported absent but not deleted.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	if c.now().Sub(e.Timestamp) >= c.ttl {
		var zero T
		return zero, false
	}
	return e.Value, true
}

// Put stores value under key with a fresh timestamp, overwriting any
// existing entry, and persists the full key space. Persistence failures
// are logged; the in-memory state is kept either way.
func (c *Cache[T]) Put(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[T]{Value: value, Timestamp: c.now()}
	if err := c.flushLocked(); err != nil {
		c.logger.Printf("persist %s: %v", c.path, err)
	}
}

// Clear removes all entries and persists the empty key space.
func (c *Cache[T]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry[T])
	return c.flushLocked()
}

// ExpireStale rewrites the backing store retaining only entries younger
// than the TTL. This is the only removal path besides Clear.
func (c *Cache[T]) ExpireStale() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	kept := make(map[string]entry[T], len(c.entries))
	for key, e := range c.entries {
		if now.Sub(e.Timestamp) < c.ttl {
			kept[key] = e
		}
	}
	c.entries = kept
	return c.flushLocked()
}

// Len reports the number of entries currently held, expired or not.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// flushLocked writes the full key space to the backing file atomically.
// Callers must hold c.mu.
func (c *Cache[T]) flushLocked() error {
	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cache-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}
