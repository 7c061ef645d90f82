package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRateLimiter_BurstThenRefill(t *testing.T) {
	rl := NewLocalRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"), "buckets are per key")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("1.2.3.4"))

	allowed, rejected := rl.Stats()
	assert.Equal(t, uint64(4), allowed)
	assert.Equal(t, uint64(1), rejected)
}

func TestRateLimiter_Middleware(t *testing.T) {
	router := gin.New()
	router.POST("/auth/login", RateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_Disabled(t *testing.T) {
	router := gin.New()
	router.POST("/auth/login", RateLimiter(RateLimitConfig{}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 20; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestConcurrencyLimiter(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	router := gin.New()
	router.POST("/onboarding/bulk", ConcurrencyLimiter(1), func(c *gin.Context) {
		entered <- struct{}{}
		<-release
		c.Status(http.StatusOK)
	})

	var wg sync.WaitGroup
	wg.Add(1)
	first := httptest.NewRecorder()
	go func() {
		defer wg.Done()
		router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/onboarding/bulk", nil))
	}()
	<-entered

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/onboarding/bulk", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	close(release)
	wg.Wait()
	assert.Equal(t, http.StatusOK, first.Code)
}
