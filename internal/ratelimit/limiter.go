package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/kgarg2468/Skintel/internal/monitoring"
	"github.com/kgarg2468/Skintel/internal/resilience"
)

const keyPrefix = "skintel:ratelimit"

// Config holds rate limiter configuration
type Config struct {
	IPLimitPerMin      int // all requests from one address
	AnalyzeLimitPerMin int // uploads from one address
	CleanupInterval    time.Duration
	MaxFallbackKeys    int
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		IPLimitPerMin:      60,
		AnalyzeLimitPerMin: 10,
		CleanupInterval:    time.Hour,
		MaxFallbackKeys:    1000,
	}
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RateLimiter provides distributed rate limiting with Redis and in-memory fallback
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	breaker      *resilience.CircuitBreaker
	config       Config
	metrics      *monitoring.Metrics

	fallbackLimiters map[string]*rate.Limiter
	fallbackMutex    sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a new rate limiter. A nil or disabled redisClient
// keeps every counter in memory.
func NewRateLimiter(redisClient *RedisClient, config Config, metrics *monitoring.Metrics) *RateLimiter {
	if redisClient == nil {
		redisClient = &RedisClient{}
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Hour
	}
	if config.MaxFallbackKeys <= 0 {
		config.MaxFallbackKeys = 1000
	}

	rl := &RateLimiter{
		redisClient:      redisClient,
		breaker:          resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 5, RecoveryTimeout: 30 * time.Second}),
		config:           config,
		metrics:          metrics,
		fallbackLimiters: make(map[string]*rate.Limiter),
		stop:             make(chan struct{}),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	go rl.cleanupFallbackLimiters()

	return rl
}

// AllowIP checks the per-minute budget for any request from ip
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) (*Result, error) {
	return rl.Allow(ctx, fmt.Sprintf("%s:ip:%s", keyPrefix, ip), rl.config.IPLimitPerMin, time.Minute)
}

// AllowEndpoint checks a per-minute budget scoped to one endpoint and ip
func (rl *RateLimiter) AllowEndpoint(ctx context.Context, endpoint, ip string, limit int) (*Result, error) {
	return rl.Allow(ctx, fmt.Sprintf("%s:endpoint:%s:%s", keyPrefix, endpoint, ip), limit, time.Minute)
}

// Allow performs the check against Redis, falling back to memory on error
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, period time.Duration) (*Result, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("rate limit for %s must be positive", key)
	}

	if rl.redisClient.IsEnabled() && rl.redisLimiter != nil {
		var result *Result
		err := rl.breaker.Call(func() error {
			var err error
			result, err = rl.allowRedis(ctx, key, limit, period)
			return err
		})
		switch {
		case err == nil:
			return result, nil
		case errors.Is(err, resilience.ErrCircuitOpen):
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitFallback()
			}
		default:
			slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitRedisError()
			}
		}
	} else if rl.metrics != nil {
		rl.metrics.IncrementRateLimitFallback()
	}

	return rl.allowFallback(key, limit, period), nil
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string, limit int, period time.Duration) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit,
		Burst:  limit,
		Period: period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    time.Now().Add(res.ResetAfter),
		RetryAfter: res.RetryAfter,
	}, nil
}

// allowFallback uses a token bucket holding limit tokens that refills over
// period.
func (rl *RateLimiter) allowFallback(key string, limit int, period time.Duration) *Result {
	rl.fallbackMutex.Lock()
	limiter, exists := rl.fallbackLimiters[key]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(float64(limit)/period.Seconds()), limit)
		rl.fallbackLimiters[key] = limiter
	}
	rl.fallbackMutex.Unlock()

	now := time.Now()
	reservation := limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	allowed := reservation.OK() && delay == 0
	if !allowed {
		reservation.CancelAt(now)
	}

	remaining := int(limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}

	refill := time.Duration(float64(period) / float64(limit))
	result := &Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   now.Add(time.Duration(limit-remaining) * refill),
	}
	if !allowed {
		if delay <= 0 {
			delay = refill
		}
		result.RetryAfter = delay
	}
	return result
}

// cleanupFallbackLimiters periodically drops in-memory buckets once too many
// addresses have been seen
func (rl *RateLimiter) cleanupFallbackLimiters() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.fallbackMutex.Lock()
			if len(rl.fallbackLimiters) > rl.config.MaxFallbackKeys {
				slog.Info("Cleaning up fallback rate limiters", "count", len(rl.fallbackLimiters))
				rl.fallbackLimiters = make(map[string]*rate.Limiter)
			}
			rl.fallbackMutex.Unlock()
		case <-rl.stop:
			return
		}
	}
}

// Close stops background cleanup. The Redis client is owned by the caller.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.Lock()
	fallbackCount := len(rl.fallbackLimiters)
	rl.fallbackMutex.Unlock()

	stats := map[string]interface{}{
		"redis_enabled":     rl.redisClient.IsEnabled(),
		"fallback_limiters": fallbackCount,
	}
	if rl.redisClient.IsEnabled() {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
		stats["redis_breaker"] = rl.breaker.Stats()
	}
	return stats
}
