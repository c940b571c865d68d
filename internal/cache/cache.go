package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/WCArena/pudscan/pkg/core"
)

// Entry is a decoded map and its analysis.
type Entry struct {
	Document core.MapDocument
	Analysis core.StrategicAnalysis
}

func (e *Entry) clone() Entry {
	return Entry{Document: e.Document.Clone(), Analysis: e.Analysis.Clone()}
}

// Key returns the hex SHA-256 of a file's bytes.
func Key(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// AnalysisCache keeps analyses by file hash so re-uploads of the same map
// skip decoding. It evicts the oldest insert once full. A capacity of zero
// disables caching.
type AnalysisCache struct {
	m        sync.Mutex
	capacity int
	entries  map[string]Entry
	order    []string

	hits   uint64
	misses uint64
}

func NewAnalysisCache(capacity int) *AnalysisCache {
	if capacity < 0 {
		capacity = 0
	}
	return &AnalysisCache{
		capacity: capacity,
		entries:  make(map[string]Entry, capacity),
	}
}

// Get returns a private copy of the entry stored under key.
func (c *AnalysisCache) Get(key string) (Entry, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	if e, ok := c.entries[key]; ok {
		c.hits++
		return e.clone(), true
	}
	c.misses++
	return Entry{}, false
}

// Add stores a copy of e, so later changes to the caller's slices and maps
// do not reach the cache.
func (c *AnalysisCache) Add(key string, e Entry) {
	if c.capacity == 0 {
		return
	}
	e = e.clone()
	c.m.Lock()
	defer c.m.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = e
		return
	}
	for len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = e
	c.order = append(c.order, key)
}

func (c *AnalysisCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counts since creation or the last Reset.
func (c *AnalysisCache) Stats() (hits, misses uint64) {
	c.m.Lock()
	defer c.m.Unlock()
	return c.hits, c.misses
}

func (c *AnalysisCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.entries = make(map[string]Entry, c.capacity)
	c.order = nil
	c.hits, c.misses = 0, 0
}
