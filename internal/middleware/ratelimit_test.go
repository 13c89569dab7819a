package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestContext(method, path, ip string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(method, path, nil)
	c.Request.RemoteAddr = ip + ":1234"
	return c
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := newRateLimiter(1, 2)

	for i := 0; i < 2; i++ {
		c := newTestContext(http.MethodPost, "/api/v1/auth/resend", "10.0.0.1")
		limiter.handle(c)
		require.False(t, c.IsAborted())
	}
	c := newTestContext(http.MethodPost, "/api/v1/auth/resend", "10.0.0.1")
	limiter.handle(c)
	require.True(t, c.IsAborted())
}

func TestRateLimiterSeparatesClientsAndRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := newRateLimiter(1, 1)

	c := newTestContext(http.MethodPost, "/api/v1/auth/resend", "10.0.0.1")
	limiter.handle(c)
	require.False(t, c.IsAborted())

	c = newTestContext(http.MethodPost, "/api/v1/auth/resend", "10.0.0.2")
	limiter.handle(c)
	require.False(t, c.IsAborted())

	c = newTestContext(http.MethodPost, "/api/v1/auth/verify", "10.0.0.1")
	limiter.handle(c)
	require.False(t, c.IsAborted())
}

func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := RateLimit(0, 0)
	for i := 0; i < 5; i++ {
		c := newTestContext(http.MethodPost, "/x", "10.0.0.1")
		h(c)
		require.False(t, c.IsAborted())
	}
}
