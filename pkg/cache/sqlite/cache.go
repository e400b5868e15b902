// Package sqlite is an exact-match response cache. Keys hash the task
// type with both prompts, so identical requests skip routing and provider
// calls entirely; a hit replays the stored result with the Cached flag
// set and records no usage event.
package sqlite

import (
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scholaris-edu/scholaris/pkg/models"
)

// Cache is an exact-match generation cache backed by SQLite.
type Cache struct {
	db     *sql.DB
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	request_hash TEXT PRIMARY KEY,
	result BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_seconds INTEGER NOT NULL
);
`

// New creates a Cache with the given database path and default TTL.
func New(dbPath string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	return &Cache{db: db, ttl: ttl}, nil
}

// HashRequest computes the cache key for a request. Task type, system
// prompt, and user prompt all participate; user identity does not, so a
// cached explanation serves every student who asks the same question.
func HashRequest(task models.TaskType, systemPrompt, prompt string) string {
	h := sha256.New()
	h.Write([]byte(task))
	h.Write([]byte{0})
	h.Write([]byte(systemPrompt))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get retrieves a cached result. Misses and expired entries return false.
func (c *Cache) Get(requestHash string) (models.GenerationResult, bool) {
	var raw []byte
	var createdAt time.Time
	var ttlSeconds int64

	err := c.db.QueryRow(
		`SELECT result, created_at, ttl_seconds FROM cache_entries WHERE request_hash = ?`,
		requestHash,
	).Scan(&raw, &createdAt, &ttlSeconds)
	if err != nil {
		c.misses.Add(1)
		return models.GenerationResult{}, false
	}

	if time.Since(createdAt) > time.Duration(ttlSeconds)*time.Second {
		c.misses.Add(1)
		return models.GenerationResult{}, false
	}

	var result models.GenerationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.misses.Add(1)
		return models.GenerationResult{}, false
	}

	c.hits.Add(1)
	result.Cached = true
	return result, true
}

// Put stores a successful generation result.
func (c *Cache) Put(requestHash string, result models.GenerationResult) error {
	result.Cached = false
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO cache_entries (request_hash, result, created_at, ttl_seconds)
		 VALUES (?, ?, ?, ?)`,
		requestHash, raw, time.Now().UTC(), int64(c.ttl.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Stats returns cache performance counters.
func (c *Cache) Stats() (models.CacheStats, error) {
	var count int64
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes cache entries. If expiredOnly is true, only expired
// entries are removed.
func (c *Cache) Clear(expiredOnly bool) error {
	query := `DELETE FROM cache_entries`
	if expiredOnly {
		query = `DELETE FROM cache_entries WHERE (julianday('now') - julianday(created_at)) * 86400 > ttl_seconds`
	}
	if _, err := c.db.Exec(query); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
