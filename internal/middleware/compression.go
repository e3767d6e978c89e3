package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      // Minimum first write to compress (bytes)
	CompressionLevel int      // Gzip compression level (1-9, 9 is best compression)
	ContentTypes     []string // Content types to compress
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024,
		CompressionLevel: 6,
		ContentTypes: []string{
			"application/json",
			"text/plain",
			"text/html",
			"text/css",
			"application/javascript",
		},
	}
}

// CompressionMiddleware provides gzip compression for HTTP responses
type CompressionMiddleware struct {
	config CompressionConfig
	stats  *CompressionStats
	pool   sync.Pool
}

// NewCompressionMiddleware creates a new compression middleware
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	level := config.CompressionLevel
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return &CompressionMiddleware{
		config: config,
		stats:  NewCompressionStats(),
		pool: sync.Pool{
			New: func() interface{} {
				gz, _ := gzip.NewWriterLevel(io.Discard, level)
				return gz
			},
		},
	}
}

// Handler wraps the gin writer so the compression decision is made on the
// first body write, once the handler has set Content-Type.
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodHead || !clientAcceptsGzip(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		gzw := &gzipResponseWriter{ResponseWriter: c.Writer, cm: cm}
		c.Writer = gzw
		defer func() {
			gzw.finish()
			c.Writer = gzw.ResponseWriter
		}()

		c.Next()
	}
}

func clientAcceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

func (cm *CompressionMiddleware) shouldCompress(contentType string) bool {
	for _, ct := range cm.config.ContentTypes {
		if strings.Contains(contentType, ct) {
			return true
		}
	}
	return false
}

// gzipResponseWriter wraps a gin.ResponseWriter with gzip compression
type gzipResponseWriter struct {
	gin.ResponseWriter
	cm *CompressionMiddleware

	decided    bool
	gz         *gzip.Writer
	rawBytes   int64
	headerSize int
}

func (gzw *gzipResponseWriter) decide(first []byte) {
	gzw.decided = true

	h := gzw.Header()
	if h.Get("Content-Encoding") != "" || len(first) < gzw.cm.config.MinSize ||
		!gzw.cm.shouldCompress(h.Get("Content-Type")) {
		return
	}

	h.Set("Content-Encoding", "gzip")
	h.Del("Content-Length")
	gzw.headerSize = gzw.ResponseWriter.Size()
	gzw.gz = gzw.cm.pool.Get().(*gzip.Writer)
	gzw.gz.Reset(gzw.ResponseWriter)
}

// Write writes data through the gzip writer
func (gzw *gzipResponseWriter) Write(data []byte) (int, error) {
	if !gzw.decided {
		gzw.decide(data)
	}
	gzw.rawBytes += int64(len(data))
	if gzw.gz == nil {
		return gzw.ResponseWriter.Write(data)
	}
	return gzw.gz.Write(data)
}

func (gzw *gzipResponseWriter) WriteString(s string) (int, error) {
	return gzw.Write([]byte(s))
}

// Flush flushes the gzip writer
func (gzw *gzipResponseWriter) Flush() {
	if gzw.gz != nil {
		_ = gzw.gz.Flush()
	}
	gzw.ResponseWriter.Flush()
}

func (gzw *gzipResponseWriter) finish() {
	if gzw.gz == nil {
		if gzw.decided {
			gzw.cm.stats.RecordRequest(gzw.rawBytes, gzw.rawBytes, false)
		}
		return
	}

	_ = gzw.gz.Close()
	gzw.gz.Reset(io.Discard)
	gzw.cm.pool.Put(gzw.gz)
	gzw.gz = nil

	compressed := int64(gzw.ResponseWriter.Size() - max(gzw.headerSize, 0))
	gzw.cm.stats.RecordRequest(gzw.rawBytes, compressed, true)
}

// CompressionStats tracks compression statistics
type CompressionStats struct {
	TotalRequests      int64
	CompressedRequests int64
	TotalBytes         int64
	CompressedBytes    int64
	mutex              sync.RWMutex
}

// NewCompressionStats creates new compression statistics
func NewCompressionStats() *CompressionStats {
	return &CompressionStats{}
}

// RecordRequest records a request's compression stats
func (cs *CompressionStats) RecordRequest(originalSize, compressedSize int64, compressed bool) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.TotalRequests++
	cs.TotalBytes += originalSize
	if compressed {
		cs.CompressedRequests++
		cs.CompressedBytes += compressedSize
	} else {
		cs.CompressedBytes += originalSize
	}
}

// GetStats returns current compression statistics
func (cs *CompressionStats) GetStats() map[string]interface{} {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	compressionRatio := float64(1)
	if cs.TotalBytes > 0 {
		compressionRatio = float64(cs.CompressedBytes) / float64(cs.TotalBytes)
	}

	return map[string]interface{}{
		"total_requests":      cs.TotalRequests,
		"compressed_requests": cs.CompressedRequests,
		"total_bytes":         cs.TotalBytes,
		"compressed_bytes":    cs.CompressedBytes,
		"compression_ratio":   compressionRatio,
		"compression_savings": 1.0 - compressionRatio,
	}
}

func (cm *CompressionMiddleware) GetStats() map[string]interface{} {
	return cm.stats.GetStats()
}
