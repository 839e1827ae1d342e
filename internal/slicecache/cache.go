// Package slicecache keeps the most recent detections of each live tile so a
// time-sliced stream can still report the whole frame.
package slicecache

import (
	"sort"
	"sync"
	"time"

	"github.com/wyyywsd/FinderEye/internal/detection"
)

// DefaultTTL is how long a tile's detections stay valid.
const DefaultTTL = 500 * time.Millisecond

type entry struct {
	detections []detection.Detection
	timestamp  time.Time
}

// Cache maps a tile index to that tile's latest detections, already in frame
// coordinates. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int]entry
}

// New creates a cache whose AllCurrent and Coverage ignore entries older than
// ttl. A non-positive ttl selects DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{ttl: ttl, entries: make(map[int]entry)}
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Put stores dets as the latest result for tileIndex, replacing whatever was
// there. An empty result is stored too: it means the tile saw nothing.
func (c *Cache) Put(tileIndex int, dets []detection.Detection, now time.Time) {
	cp := append([]detection.Detection(nil), dets...)
	c.mu.Lock()
	c.entries[tileIndex] = entry{detections: cp, timestamp: now}
	c.mu.Unlock()
}

// PurgeExpired removes entries older than ttl and returns how many were
// removed.
func (c *Cache) PurgeExpired(now time.Time, ttl time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for idx, e := range c.entries {
		if now.Sub(e.timestamp) > ttl {
			delete(c.entries, idx)
			removed++
		}
	}
	return removed
}

// AllCurrent concatenates the detections of every live entry, in tile index
// order.
func (c *Cache) AllCurrent(now time.Time) []detection.Detection {
	c.mu.Lock()
	defer c.mu.Unlock()

	indices := make([]int, 0, len(c.entries))
	for idx, e := range c.entries {
		if now.Sub(e.timestamp) <= c.ttl {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)

	var out []detection.Detection
	for _, idx := range indices {
		out = append(out, c.entries[idx].detections...)
	}
	return out
}

// Coverage returns how many distinct tiles have reported within the TTL.
func (c *Cache) Coverage(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if now.Sub(e.timestamp) <= c.ttl {
			n++
		}
	}
	return n
}

// Reset drops every entry.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[int]entry)
	c.mu.Unlock()
}
