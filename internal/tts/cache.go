package tts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Key computes the content address for a (text, voice) pair. The
// serialization is byte-exact and versioned so identical inputs across
// sessions and process restarts always map to the same entry.
func Key(text string, v Voice) string {
	normalized := strings.Join(strings.Fields(text), " ")
	canonical := fmt.Sprintf("tts/v1|%s|%s|%s|%s|%d|%.3f",
		normalized, v.ID, v.Model, v.Encoding, v.SampleRate, v.Speed)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

type entry struct {
	data      []byte
	url       string
	createdAt time.Time
}

// Cache is the shared content-addressed audio store. Entries older than the
// TTL are treated as absent and purged on the access that finds them.
// Concurrent writers for the same key are harmless: the payloads are
// byte-identical by construction, last writer wins.
type Cache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]entry
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{ttl: ttl, entries: make(map[string]entry)}
}

// Get returns the live entry for key, if any.
func (c *Cache) Get(key string) ([]byte, string, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, "", false
	}
	if time.Since(e.createdAt) > c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Put may have
		// refreshed the entry.
		if cur, ok := c.entries[key]; ok && time.Since(cur.createdAt) > c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, "", false
	}
	return e.data, e.url, true
}

// Put stores audio bytes and the URL they are served from.
func (c *Cache) Put(key string, data []byte, url string) {
	c.mu.Lock()
	c.entries[key] = entry{data: data, url: url, createdAt: time.Now()}
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
