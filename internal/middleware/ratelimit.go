package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/barbartender/bartender/internal/pkg/errcode"
	"github.com/barbartender/bartender/internal/pkg/response"
)

const maxTrackedClients = 10000

// rateLimiter keeps one token bucket per client and route. Idle buckets
// fall out of the LRU after ttl.
type rateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets *expirable.LRU[string, *rate.Limiter]
}

// RateLimit allows perMinute requests per client and route with the
// given burst. perMinute <= 0 disables it.
func RateLimit(perMinute, burst int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = 1
	}
	return newRateLimiter(perMinute, burst).handle
}

func newRateLimiter(perMinute, burst int) *rateLimiter {
	return &rateLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		buckets: expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, 10*time.Minute),
	}
}

func (l *rateLimiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.buckets.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.buckets.Add(key, lim)
	return lim
}

func (l *rateLimiter) handle(c *gin.Context) {
	ip := c.ClientIP()
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	key := strings.Join([]string{ip, path}, "|")
	if !l.bucket(key).Allow() {
		logutil.GetLogger(c.Request.Context()).Warn("rate limit hit",
			zap.String("ip", ip),
			zap.String("path", path),
		)
		response.Error(c, errcode.ErrTooMany, http.StatusText(http.StatusTooManyRequests))
		c.Abort()
		return
	}
	c.Next()
}
