package monitoring

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects lightweight in-process counters for the /metrics endpoint.
type Metrics struct {
	requestCount int64
	errorCount   int64

	cacheHits   int64
	cacheMisses int64

	snapshotsComputed  int64
	compositesComputed int64
	recommendations    int64

	rateLimitBlocks      int64
	rateLimitRedisErrors int64
	rateLimitFallbacks   int64

	mu            sync.Mutex
	responseTimes []time.Duration
	startTime     time.Time
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		responseTimes: make([]time.Duration, 0, 1024),
		startTime:     time.Now(),
	}
}

// IncrementRequest increments the total request counter.
func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.requestCount, 1)
}

// IncrementError increments the error counter.
func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.errorCount, 1)
}

// IncrementCacheHit increments the cache hit counter.
func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.cacheHits, 1)
}

// IncrementCacheMiss increments the cache miss counter.
func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.cacheMisses, 1)
}

// IncrementSnapshotsComputed counts one health snapshot computation.
func (m *Metrics) IncrementSnapshotsComputed() {
	atomic.AddInt64(&m.snapshotsComputed, 1)
}

// IncrementCompositesComputed counts one composite series computation.
func (m *Metrics) IncrementCompositesComputed() {
	atomic.AddInt64(&m.compositesComputed, 1)
}

// IncrementRecommendations counts one readiness/fit scoring pass.
func (m *Metrics) IncrementRecommendations() {
	atomic.AddInt64(&m.recommendations, 1)
}

// IncrementRateLimitBlock counts one rejected request.
func (m *Metrics) IncrementRateLimitBlock() {
	atomic.AddInt64(&m.rateLimitBlocks, 1)
}

// IncrementRateLimitRedisError counts one Redis failure during a limit check.
func (m *Metrics) IncrementRateLimitRedisError() {
	atomic.AddInt64(&m.rateLimitRedisErrors, 1)
}

// IncrementRateLimitFallback counts one in-memory fallback limit check.
func (m *Metrics) IncrementRateLimitFallback() {
	atomic.AddInt64(&m.rateLimitFallbacks, 1)
}

// RecordResponseTime records a request duration for percentile reporting.
// The buffer is bounded; old samples rotate out.
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responseTimes) >= 1024 {
		m.responseTimes = m.responseTimes[1:]
	}
	m.responseTimes = append(m.responseTimes, duration)
}

// GetStats returns a point-in-time view of all counters.
func (m *Metrics) GetStats() map[string]any {
	m.mu.Lock()
	var total time.Duration
	for _, d := range m.responseTimes {
		total += d
	}
	samples := len(m.responseTimes)
	m.mu.Unlock()

	avgMs := 0.0
	if samples > 0 {
		avgMs = float64(total.Milliseconds()) / float64(samples)
	}

	return map[string]any{
		"uptime_seconds":          time.Since(m.startTime).Seconds(),
		"requests_total":          atomic.LoadInt64(&m.requestCount),
		"errors_total":            atomic.LoadInt64(&m.errorCount),
		"cache_hits":              atomic.LoadInt64(&m.cacheHits),
		"cache_misses":            atomic.LoadInt64(&m.cacheMisses),
		"snapshots_computed":      atomic.LoadInt64(&m.snapshotsComputed),
		"composites_computed":     atomic.LoadInt64(&m.compositesComputed),
		"recommendations":         atomic.LoadInt64(&m.recommendations),
		"rate_limit_blocks":       atomic.LoadInt64(&m.rateLimitBlocks),
		"rate_limit_redis_errors": atomic.LoadInt64(&m.rateLimitRedisErrors),
		"rate_limit_fallbacks":    atomic.LoadInt64(&m.rateLimitFallbacks),
		"avg_response_time_ms":    avgMs,
	}
}
