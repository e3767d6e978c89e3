package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const maxResponseSamples = 1000

// Metrics holds in-memory application counters. Nothing here is persisted
// and no per-user data is kept.
type Metrics struct {
	RequestCount        int64
	ErrorCount          int64
	AnalysesTotal       int64
	AnalysisFailures    int64
	UploadRejections    int64
	AverageResponseTime int64 // in nanoseconds
	StartTime           time.Time

	ResponseTimes      []time.Duration
	ResponseTimesMutex sync.RWMutex

	AnalysisTimes      []time.Duration
	AnalysisTimesMutex sync.RWMutex

	RequestCountByStatus map[int]int64
	StatusMutex          sync.RWMutex

	// High risk findings per condition and failures per error category
	HighRiskByCondition map[string]int64
	FailuresByCategory  map[string]int64
	AnalysisMutex       sync.RWMutex

	GCCount        int64
	GCPauseTotalNs int64
	HeapAlloc      int64
	HeapSys        int64

	RateLimitIPBlocks       int64
	RateLimitRedisErrors    int64
	RateLimitFallbackCount  int64
	RateLimitEndpointBlocks map[string]int64
	RateLimitMutex          sync.RWMutex

	CacheHits   int64
	CacheMisses int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:               time.Now(),
		ResponseTimes:           make([]time.Duration, 0, maxResponseSamples),
		AnalysisTimes:           make([]time.Duration, 0, maxResponseSamples),
		RequestCountByStatus:    make(map[int]int64),
		HighRiskByCondition:     make(map[string]int64),
		FailuresByCategory:      make(map[string]int64),
		RateLimitEndpointBlocks: make(map[string]int64),
	}
}

// IncrementRequest increments the request count
func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

// IncrementError increments the error count
func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// RecordAnalysis counts a successful analysis and the conditions it placed
// in the High tier.
func (m *Metrics) RecordAnalysis(duration time.Duration, highRiskConditions []string) {
	atomic.AddInt64(&m.AnalysesTotal, 1)

	m.AnalysisTimesMutex.Lock()
	m.AnalysisTimes = appendSample(m.AnalysisTimes, duration)
	m.AnalysisTimesMutex.Unlock()

	if len(highRiskConditions) == 0 {
		return
	}
	m.AnalysisMutex.Lock()
	defer m.AnalysisMutex.Unlock()
	for _, name := range highRiskConditions {
		m.HighRiskByCondition[name]++
	}
}

// RecordAnalysisFailure counts a failed analysis by error category
func (m *Metrics) RecordAnalysisFailure(category string) {
	atomic.AddInt64(&m.AnalysisFailures, 1)

	m.AnalysisMutex.Lock()
	defer m.AnalysisMutex.Unlock()
	m.FailuresByCategory[category]++
}

// IncrementUploadRejection counts uploads refused before analysis
func (m *Metrics) IncrementUploadRejection() {
	atomic.AddInt64(&m.UploadRejections, 1)
}

// RecordResponseTime records response time for averaging and percentiles
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	current := atomic.LoadInt64(&m.AverageResponseTime)
	newAverage := (current + duration.Nanoseconds()) / 2
	atomic.StoreInt64(&m.AverageResponseTime, newAverage)

	m.ResponseTimesMutex.Lock()
	m.ResponseTimes = appendSample(m.ResponseTimes, duration)
	m.ResponseTimesMutex.Unlock()
}

func appendSample(samples []time.Duration, d time.Duration) []time.Duration {
	samples = append(samples, d)
	if len(samples) > maxResponseSamples {
		samples = samples[1:]
	}
	return samples
}

// RecordRequestByStatus records request count by HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.StatusMutex.Lock()
	defer m.StatusMutex.Unlock()
	m.RequestCountByStatus[statusCode]++
}

// RecordGCMetrics records Go garbage collector metrics
func (m *Metrics) RecordGCMetrics(gcCount int64, gcPauseTotalNs int64, heapAlloc, heapSys int64) {
	atomic.StoreInt64(&m.GCCount, gcCount)
	atomic.StoreInt64(&m.GCPauseTotalNs, gcPauseTotalNs)
	atomic.StoreInt64(&m.HeapAlloc, heapAlloc)
	atomic.StoreInt64(&m.HeapSys, heapSys)
}

func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}

	times := make([]time.Duration, len(samples))
	copy(times, samples)
	sort.Slice(times, func(i, j int) bool {
		return times[i] < times[j]
	})

	index := int(float64(len(times)-1) * p / 100.0)
	if index >= len(times) {
		index = len(times) - 1
	}
	return times[index]
}

// GetPercentileResponseTime calculates percentile response time
func (m *Metrics) GetPercentileResponseTime(p float64) time.Duration {
	m.ResponseTimesMutex.RLock()
	defer m.ResponseTimesMutex.RUnlock()
	return percentile(m.ResponseTimes, p)
}

// GetPercentileAnalysisTime calculates percentile pipeline time
func (m *Metrics) GetPercentileAnalysisTime(p float64) time.Duration {
	m.AnalysisTimesMutex.RLock()
	defer m.AnalysisTimesMutex.RUnlock()
	return percentile(m.AnalysisTimes, p)
}

// GetStatusCodeDistribution returns request count by status code
func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.StatusMutex.RLock()
	defer m.StatusMutex.RUnlock()

	distribution := make(map[int]int64, len(m.RequestCountByStatus))
	for code, count := range m.RequestCountByStatus {
		distribution[code] = count
	}
	return distribution
}

// GetAnalysisStats returns analysis counters
func (m *Metrics) GetAnalysisStats() map[string]interface{} {
	m.AnalysisMutex.RLock()
	highRisk := make(map[string]int64, len(m.HighRiskByCondition))
	for k, v := range m.HighRiskByCondition {
		highRisk[k] = v
	}
	failures := make(map[string]int64, len(m.FailuresByCategory))
	for k, v := range m.FailuresByCategory {
		failures[k] = v
	}
	m.AnalysisMutex.RUnlock()

	return map[string]interface{}{
		"total":                  atomic.LoadInt64(&m.AnalysesTotal),
		"failures":               atomic.LoadInt64(&m.AnalysisFailures),
		"upload_rejections":      atomic.LoadInt64(&m.UploadRejections),
		"high_risk_by_condition": highRisk,
		"failures_by_category":   failures,
		"p50_duration_ms":        float64(m.GetPercentileAnalysisTime(50)) / 1e6,
		"p95_duration_ms":        float64(m.GetPercentileAnalysisTime(95)) / 1e6,
	}
}

// GetStats returns current metrics statistics
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errors := atomic.LoadInt64(&m.ErrorCount)
	avgResponseTime := atomic.LoadInt64(&m.AverageResponseTime)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}

	heapAlloc := atomic.LoadInt64(&m.HeapAlloc)
	heapSys := atomic.LoadInt64(&m.HeapSys)
	heapUsage := float64(0)
	if heapSys > 0 {
		heapUsage = float64(heapAlloc) / float64(heapSys) * 100
	}

	return map[string]interface{}{
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
		"total_requests":       requests,
		"error_count":          errors,
		"error_rate_percent":   errorRate,
		"avg_response_time_ms": float64(avgResponseTime) / 1e6,
		"start_time":           m.StartTime.Format(time.RFC3339),

		"p50_response_time_ms":     float64(m.GetPercentileResponseTime(50)) / 1e6,
		"p95_response_time_ms":     float64(m.GetPercentileResponseTime(95)) / 1e6,
		"p99_response_time_ms":     float64(m.GetPercentileResponseTime(99)) / 1e6,
		"status_code_distribution": m.GetStatusCodeDistribution(),
		"analysis":                 m.GetAnalysisStats(),
		"rate_limit":               m.GetRateLimitStats(),
		"cache_hits":               atomic.LoadInt64(&m.CacheHits),
		"cache_misses":             atomic.LoadInt64(&m.CacheMisses),

		"go_gc_count":           atomic.LoadInt64(&m.GCCount),
		"go_gc_pause_total_ns":  atomic.LoadInt64(&m.GCPauseTotalNs),
		"go_heap_alloc_bytes":   heapAlloc,
		"go_heap_sys_bytes":     heapSys,
		"go_heap_usage_percent": heapUsage,
	}
}

func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// IncrementRateLimitIPBlock increments IP-based rate limit blocks
func (m *Metrics) IncrementRateLimitIPBlock() {
	atomic.AddInt64(&m.RateLimitIPBlocks, 1)
}

// IncrementRateLimitRedisError increments Redis error count for rate limiting
func (m *Metrics) IncrementRateLimitRedisError() {
	atomic.AddInt64(&m.RateLimitRedisErrors, 1)
}

// IncrementRateLimitFallback increments fallback rate limiter usage count
func (m *Metrics) IncrementRateLimitFallback() {
	atomic.AddInt64(&m.RateLimitFallbackCount, 1)
}

// IncrementRateLimitEndpoint increments rate limit blocks for a specific endpoint
func (m *Metrics) IncrementRateLimitEndpoint(endpoint string) {
	m.RateLimitMutex.Lock()
	defer m.RateLimitMutex.Unlock()
	m.RateLimitEndpointBlocks[endpoint]++
}

// GetRateLimitStats returns rate limiting statistics
func (m *Metrics) GetRateLimitStats() map[string]interface{} {
	m.RateLimitMutex.RLock()
	endpointBlocksCopy := make(map[string]int64, len(m.RateLimitEndpointBlocks))
	for k, v := range m.RateLimitEndpointBlocks {
		endpointBlocksCopy[k] = v
	}
	m.RateLimitMutex.RUnlock()

	return map[string]interface{}{
		"ip_blocks":       atomic.LoadInt64(&m.RateLimitIPBlocks),
		"redis_errors":    atomic.LoadInt64(&m.RateLimitRedisErrors),
		"fallback_count":  atomic.LoadInt64(&m.RateLimitFallbackCount),
		"endpoint_blocks": endpointBlocksCopy,
	}
}
