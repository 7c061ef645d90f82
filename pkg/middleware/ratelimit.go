package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prohmpiriya/multicore-crm/pkg/logger"
	pkgredis "github.com/prohmpiriya/multicore-crm/pkg/redis"
	"github.com/prohmpiriya/multicore-crm/pkg/response"
)

// RateLimitConfig holds per-client token bucket settings
type RateLimitConfig struct {
	// RequestsPerSecond refills the bucket; 0 disables limiting
	RequestsPerSecond int
	// BurstSize is the bucket capacity
	BurstSize int
	// RedisClient switches to the distributed limiter when set
	RedisClient *pkgredis.Client
	KeyPrefix   string
	// CleanupInterval and EntryTTL bound the local limiter's memory
	CleanupInterval time.Duration
	EntryTTL        time.Duration
}

// DefaultLoginRateLimitConfig throttles credential guessing per client IP
func DefaultLoginRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 5,
		BurstSize:         10,
		KeyPrefix:         "ratelimit:login:",
		CleanupInterval:   time.Minute,
		EntryTTL:          time.Minute,
	}
}

type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

// LocalRateLimiter is an in-memory token bucket per key
type LocalRateLimiter struct {
	config  RateLimitConfig
	entries sync.Map
	stop    chan struct{}
	once    sync.Once
	now     func() time.Time

	totalAllowed  uint64
	totalRejected uint64
}

// NewLocalRateLimiter creates a local limiter and starts its cleanup loop
func NewLocalRateLimiter(config RateLimitConfig) *LocalRateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}
	if config.EntryTTL <= 0 {
		config.EntryTTL = time.Minute
	}
	rl := &LocalRateLimiter{
		config: config,
		stop:   make(chan struct{}),
		now:    time.Now,
	}
	go rl.cleanup()
	return rl
}

// Allow takes one token from key's bucket
func (rl *LocalRateLimiter) Allow(key string) bool {
	now := rl.now()

	entry, _ := rl.entries.LoadOrStore(key, &rateLimitEntry{
		tokens:     float64(rl.config.BurstSize),
		lastUpdate: now,
	})
	e := entry.(*rateLimitEntry)

	e.mu.Lock()
	defer e.mu.Unlock()

	elapsed := now.Sub(e.lastUpdate).Seconds()
	e.tokens = min(float64(rl.config.BurstSize), e.tokens+elapsed*float64(rl.config.RequestsPerSecond))
	e.lastUpdate = now

	if e.tokens >= 1 {
		e.tokens--
		atomic.AddUint64(&rl.totalAllowed, 1)
		return true
	}

	atomic.AddUint64(&rl.totalRejected, 1)
	return false
}

// Stats returns allowed and rejected counts
func (rl *LocalRateLimiter) Stats() (allowed, rejected uint64) {
	return atomic.LoadUint64(&rl.totalAllowed), atomic.LoadUint64(&rl.totalRejected)
}

func (rl *LocalRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := rl.now().Add(-rl.config.EntryTTL)
			rl.entries.Range(func(key, value interface{}) bool {
				e := value.(*rateLimitEntry)
				e.mu.Lock()
				if e.lastUpdate.Before(cutoff) {
					rl.entries.Delete(key)
				}
				e.mu.Unlock()
				return true
			})
		case <-rl.stop:
			return
		}
	}
}

// Stop ends the cleanup loop
func (rl *LocalRateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// tokenBucketScript refills and takes one token atomically
const tokenBucketScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call("HMGET", key, "tokens", "last_update")
local tokens = tonumber(data[1]) or burst
local last_update = tonumber(data[2]) or now

tokens = math.min(burst, tokens + (now - last_update) * rate)

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call("HSET", key, "tokens", tokens, "last_update", now)
redis.call("EXPIRE", key, 60)
return {allowed, tostring(tokens)}
`

// RedisRateLimiter shares buckets across instances through Redis
type RedisRateLimiter struct {
	config RateLimitConfig
}

// NewRedisRateLimiter creates a Redis-backed limiter
func NewRedisRateLimiter(config RateLimitConfig) *RedisRateLimiter {
	return &RedisRateLimiter{config: config}
}

// Allow takes one token from key's bucket in Redis
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := float64(time.Now().UnixNano()) / 1e9

	values, err := rl.config.RedisClient.Eval(ctx, tokenBucketScript,
		[]string{rl.config.KeyPrefix + key},
		rl.config.RequestsPerSecond,
		rl.config.BurstSize,
		now,
	).Slice()
	if err != nil {
		return false, err
	}
	if len(values) < 1 {
		return false, fmt.Errorf("unexpected rate limit result length %d", len(values))
	}

	allowed, _ := values[0].(int64)
	return allowed == 1, nil
}

// RateLimiter throttles requests per client IP. Redis errors fail open.
func RateLimiter(config RateLimitConfig) gin.HandlerFunc {
	if config.RequestsPerSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	var local *LocalRateLimiter
	var distributed *RedisRateLimiter
	if config.RedisClient != nil {
		distributed = NewRedisRateLimiter(config)
	} else {
		local = NewLocalRateLimiter(config)
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		var allowed bool
		if distributed != nil {
			var err error
			allowed, err = distributed.Allow(c.Request.Context(), clientIP)
			if err != nil {
				logger.WarnCtx(c.Request.Context(), "rate limiter unavailable, allowing request", zap.Error(err))
				allowed = true
			}
		} else {
			allowed = local.Allow(clientIP)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerSecond))
		if !allowed {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				response.Error(response.ErrCodeTooManyRequests, "Too many attempts, please retry in a moment"))
			return
		}

		c.Next()
	}
}

// ConcurrencyLimiter caps in-flight requests on the routes it guards
func ConcurrencyLimiter(maxConcurrent int64) gin.HandlerFunc {
	var current int64

	return func(c *gin.Context) {
		if atomic.AddInt64(&current, 1) > maxConcurrent {
			atomic.AddInt64(&current, -1)
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				response.Error(response.ErrCodeTooManyRequests, "Server is at capacity, please retry in a moment"))
			return
		}
		defer atomic.AddInt64(&current, -1)
		c.Next()
	}
}
