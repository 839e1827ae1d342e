package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// DefaultCacheEntries is the number of photos an ImageCache keeps decoded.
const DefaultCacheEntries = 16

type cachedImage struct {
	img     image.Image
	modTime time.Time
	size    int64
	used    uint64
}

// ImageCache keeps recently used photos decoded and upright, keyed by path.
//
// Static requests are debounced, so a client refining a query against the
// same photo triggers several detection runs in quick succession; the cache
// keeps those runs from decoding the file each time. An entry is reloaded
// when the file's size or modification time changes, and the least recently
// used entry is dropped once the cache is full.
//
// ImageCache is safe for concurrent use.
type ImageCache struct {
	mu      sync.Mutex
	limit   int
	clock   uint64
	entries map[string]*cachedImage
}

// NewImageCache creates a cache holding up to DefaultCacheEntries photos.
func NewImageCache() *ImageCache {
	return NewImageCacheSize(DefaultCacheEntries)
}

// NewImageCacheSize creates a cache holding up to n photos.
func NewImageCacheSize(n int) *ImageCache {
	if n <= 0 {
		n = DefaultCacheEntries
	}
	return &ImageCache{limit: n, entries: make(map[string]*cachedImage)}
}

// Load returns the upright image at path, decoding it only when it is not
// cached or has changed on disk. PNG, JPEG and GIF are supported.
func (c *ImageCache) Load(path string) (image.Image, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	c.mu.Lock()
	if e, ok := c.entries[path]; ok && e.size == fi.Size() && e.modTime.Equal(fi.ModTime()) {
		c.clock++
		e.used = c.clock
		c.mu.Unlock()
		return e.img, nil
	}
	c.mu.Unlock()

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[path]; !ok && len(c.entries) >= c.limit {
		c.evictOldestLocked()
	}
	c.clock++
	c.entries[path] = &cachedImage{img: img, modTime: fi.ModTime(), size: fi.Size(), used: c.clock}
	return img, nil
}

func (c *ImageCache) evictOldestLocked() {
	var oldest string
	var oldestUse uint64
	for p, e := range c.entries {
		if oldest == "" || e.used < oldestUse {
			oldest, oldestUse = p, e.used
		}
	}
	delete(c.entries, oldest)
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every cached image.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*cachedImage)
	c.mu.Unlock()
}

// Evict drops path from the cache. Unknown paths are ignored.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// DimensionsResult is the upright size of a photo and whether the static
// grid would split it.
type DimensionsResult struct {
	Width  int  `json:"width"`
	Height int  `json:"height"`
	Tiled  bool `json:"tiled"`
}

// GetDimensions returns the upright dimensions of the photo at path, loading
// it through cache.
func GetDimensions(cache *ImageCache, path string, minTileDimension int) (*DimensionsResult, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	long := b.Dx()
	if b.Dy() > long {
		long = b.Dy()
	}
	return &DimensionsResult{Width: b.Dx(), Height: b.Dy(), Tiled: long >= minTileDimension}, nil
}
