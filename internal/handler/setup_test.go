package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/barbartender/bartender/internal/config"
	"github.com/barbartender/bartender/internal/db"
	"github.com/barbartender/bartender/internal/handler"
	"github.com/barbartender/bartender/internal/middleware"
	"github.com/barbartender/bartender/internal/repo"
	"github.com/barbartender/bartender/internal/service"
)

var codePattern = regexp.MustCompile(`verification code is: (\d{6})`)

// captureSender remembers the last code mailed to each address.
type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
	fail  bool
}

func (s *captureSender) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return context.DeadlineExceeded
	}
	if m := codePattern.FindStringSubmatch(textBody); m != nil {
		s.codes[to] = m[1]
	}
	return nil
}

func (s *captureSender) code(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"message"`
	Data json.RawMessage `json:"data"`
}

type testEnv struct {
	router http.Handler
	sender *captureSender
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations(conn))
	t.Cleanup(func() { _ = conn.Close() })

	sender := &captureSender{codes: map[string]string{}}
	jwtSecret := []byte("test-secret")
	users := repo.NewUserRepo(conn, "sqlite")
	products := repo.NewProductRepo(conn, "sqlite")
	verification := service.NewVerificationService(repo.NewVerificationRepo(conn, "sqlite"), sender, 10*time.Minute)
	auth := service.NewAuthService(users, verification, jwtSecret, time.Hour)
	productService := service.NewProductService(products, config.DefaultCategories, config.DefaultSubCategories)
	imports := service.NewImportService(products, service.NewCategorizeService(nil, 0, 0), nil, config.DefaultCategories, config.DefaultSubCategories)

	deps := handler.RouterDeps{
		Auth:          handler.NewAuthHandler(auth),
		Products:      handler.NewProductHandler(productService, imports, 1024*1024),
		Archives:      handler.NewArchiveHandler(imports),
		JWTSecret:     jwtSecret,
		RatePerMinute: 1000,
		RateBurst:     1000,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return &testEnv{router: engine, sender: sender}
}

func (e *testEnv) do(t *testing.T, req *http.Request) envelope {
	t.Helper()
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	return env
}

func (e *testEnv) postJSON(t *testing.T, path string, body interface{}, token string) envelope {
	t.Helper()
	return e.sendJSON(t, http.MethodPost, path, body, token)
}

func (e *testEnv) sendJSON(t *testing.T, method, path string, body interface{}, token string) envelope {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(t, req)
}

func (e *testEnv) request(t *testing.T, method, path, token string) envelope {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(t, req)
}

// signup registers, verifies and logs in, returning the token.
func (e *testEnv) signup(t *testing.T, username, email string) string {
	t.Helper()
	env := e.postJSON(t, "/api/v1/auth/register", map[string]string{
		"username": username, "email": email, "password": "secret123",
	}, "")
	require.Equal(t, 0, env.Code, env.Msg)
	env = e.postJSON(t, "/api/v1/auth/verify", map[string]string{
		"email": email, "code": e.sender.code(email),
	}, "")
	require.Equal(t, 0, env.Code, env.Msg)
	env = e.postJSON(t, "/api/v1/auth/login", map[string]string{
		"email": email, "password": "secret123",
	}, "")
	require.Equal(t, 0, env.Code, env.Msg)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}
