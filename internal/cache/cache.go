// Package cache keeps rendered responses for read-only catalog endpoints.
// Analysis results never pass through it.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kgarg2468/Skintel/internal/monitoring"
)

// CacheItem is a stored response body with its content type and validator
type CacheItem struct {
	Data        []byte
	ContentType string
	ETag        string
	ExpiresAt   time.Time
}

// IsExpired checks if the cache item has expired
func (c *CacheItem) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Cache provides thread-safe caching with TTL
type Cache struct {
	mu    sync.RWMutex
	items map[string]*CacheItem
	ttl   time.Duration
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewCache creates a cache whose entries live for ttl. Close stops the
// background sweep.
func NewCache(ttl time.Duration) *Cache {
	c := &Cache{
		items: make(map[string]*CacheItem),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	go c.cleanup(5 * time.Minute)
	return c
}

func (c *Cache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) removeExpired() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, item := range c.items {
		if item.IsExpired(now) {
			delete(c.items, key)
		}
	}
}

func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Get returns a live entry. Expired entries are left for the sweep.
func (c *Cache) Get(key string) (*CacheItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok || item.IsExpired(c.now()) {
		return nil, false
	}
	return item, true
}

// Set stores a copy of data under key
func (c *Cache) Set(key string, data []byte, contentType string) *CacheItem {
	sum := sha256.Sum256(data)
	item := &CacheItem{
		Data:        bytes.Clone(data),
		ContentType: contentType,
		ETag:        `"` + hex.EncodeToString(sum[:8]) + `"`,
		ExpiresAt:   c.now().Add(c.ttl),
	}

	c.mu.Lock()
	c.items[key] = item
	c.mu.Unlock()
	return item
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*CacheItem)
}

func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns cache statistics
func (c *Cache) Stats() map[string]interface{} {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	expired := 0
	for _, item := range c.items {
		if item.IsExpired(now) {
			expired++
		}
	}
	return map[string]interface{}{
		"total_items":   len(c.items),
		"expired_items": expired,
		"active_items":  len(c.items) - expired,
		"ttl_seconds":   c.ttl.Seconds(),
	}
}

// Middleware serves GET responses from the cache and stores successful
// ones. A matching If-None-Match gets 304 with no body.
func (c *Cache) Middleware(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodGet {
			ctx.Next()
			return
		}

		key := ctx.Request.URL.RequestURI()
		if item, ok := c.Get(key); ok {
			if metrics != nil {
				metrics.IncrementCacheHit()
			}
			writeCached(ctx, item)
			ctx.Abort()
			return
		}
		if metrics != nil {
			metrics.IncrementCacheMiss()
		}

		wrapper := &responseWriter{ResponseWriter: ctx.Writer, body: &bytes.Buffer{}}
		ctx.Writer = wrapper
		ctx.Next()
		ctx.Writer = wrapper.ResponseWriter

		if wrapper.Status() == http.StatusOK && !ctx.IsAborted() {
			c.Set(key, wrapper.body.Bytes(), wrapper.Header().Get("Content-Type"))
		}
	}
}

func writeCached(ctx *gin.Context, item *CacheItem) {
	ctx.Header("ETag", item.ETag)
	ctx.Header("X-Cache", "HIT")
	if ctx.GetHeader("If-None-Match") == item.ETag {
		ctx.Status(http.StatusNotModified)
		return
	}
	ctx.Data(http.StatusOK, item.ContentType, item.Data)
}

// responseWriter copies the body on its way to the client
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
