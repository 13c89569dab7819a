package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/barbartender/bartender/internal/pkg/jwt"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserIDKey))
	})
	return r
}

func TestJWTAuth(t *testing.T) {
	secret := []byte("s")
	r := newEngine(JWTAuth(secret))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Contains(t, resp.Body.String(), "missing authorization")

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer nope")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Contains(t, resp.Body.String(), "invalid token")

	token, err := jwt.GenerateToken("u1", "alice", secret, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "bearer "+token)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, "u1", resp.Body.String())
}

func TestCORS(t *testing.T) {
	r := newEngine(CORS([]string{"https://bar.example"}))

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://bar.example")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNoContent, resp.Code)
	require.Equal(t, "https://bar.example", resp.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))

	open := newEngine(CORS(nil))
	resp = httptest.NewRecorder()
	open.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	r := newEngine(RequestID())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NotEmpty(t, resp.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "abc")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, "abc", resp.Header().Get("X-Request-Id"))
}
