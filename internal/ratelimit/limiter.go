package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/osspulse/oss-pulse/internal/config"
	"github.com/osspulse/oss-pulse/internal/monitoring"
)

// Result describes a rate limit decision.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RateLimiter enforces per-IP request limits. It prefers Redis via GCRA and
// degrades to per-IP in-memory token buckets when Redis is unavailable.
type RateLimiter struct {
	redisClient *RedisClient
	limiter     *redis_rate.Limiter
	cfg         config.RateLimitConfig
	metrics     *monitoring.Metrics

	fallbackMu sync.Mutex
	fallback   map[string]*fallbackEntry
}

type fallbackEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter backed by the given Redis client.
func NewRateLimiter(redisClient *RedisClient, cfg config.RateLimitConfig, metrics *monitoring.Metrics) *RateLimiter {
	rl := &RateLimiter{
		redisClient: redisClient,
		cfg:         cfg,
		metrics:     metrics,
		fallback:    make(map[string]*fallbackEntry),
	}
	if redisClient.IsEnabled() {
		rl.limiter = redis_rate.NewLimiter(redisClient.GetClient())
	}
	go rl.cleanupFallback()
	return rl
}

// Allow checks whether the request from ip may proceed.
func (rl *RateLimiter) Allow(ctx context.Context, ip string) Result {
	if rl.limiter != nil {
		res, err := rl.allowRedis(ctx, ip)
		if err == nil {
			return res
		}
		slog.Warn("Redis rate limit check failed, using fallback", "error", err, "ip", ip)
		if rl.metrics != nil {
			rl.metrics.IncrementRateLimitRedisError()
		}
	}
	return rl.allowFallback(ip)
}

func (rl *RateLimiter) allowRedis(ctx context.Context, ip string) (Result, error) {
	key := fmt.Sprintf("ratelimit:ip:%s", ip)
	limit := redis_rate.Limit{
		Rate:   rl.cfg.RequestsPerMinute,
		Burst:  rl.cfg.RequestsPerMinute * rl.cfg.BurstMultiplier,
		Period: time.Minute,
	}
	res, err := rl.limiter.Allow(ctx, key, limit)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Allowed:    res.Allowed > 0,
		Limit:      rl.cfg.RequestsPerMinute,
		Remaining:  res.Remaining,
		ResetAt:    time.Now().Add(res.ResetAfter),
		RetryAfter: res.RetryAfter,
	}, nil
}

func (rl *RateLimiter) allowFallback(ip string) Result {
	rl.fallbackMu.Lock()
	entry, ok := rl.fallback[ip]
	if !ok {
		perSecond := rate.Limit(float64(rl.cfg.RequestsPerMinute) / 60.0)
		burst := rl.cfg.RequestsPerMinute * rl.cfg.BurstMultiplier
		entry = &fallbackEntry{limiter: rate.NewLimiter(perSecond, burst)}
		rl.fallback[ip] = entry
	}
	entry.lastSeen = time.Now()
	allowed := entry.limiter.Allow()
	rl.fallbackMu.Unlock()

	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitFallback()
	}

	res := Result{
		Allowed:   allowed,
		Limit:     rl.cfg.RequestsPerMinute,
		Remaining: 0,
		ResetAt:   time.Now().Add(time.Minute),
	}
	if !allowed {
		res.RetryAfter = time.Second
	}
	return res
}

// cleanupFallback evicts fallback limiters idle for over 10 minutes.
func (rl *RateLimiter) cleanupFallback() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		rl.fallbackMu.Lock()
		for ip, entry := range rl.fallback {
			if entry.lastSeen.Before(cutoff) {
				delete(rl.fallback, ip)
			}
		}
		rl.fallbackMu.Unlock()
	}
}
