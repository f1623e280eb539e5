package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"portfolio-api/internal/client"
	"portfolio-api/internal/config"
	"portfolio-api/internal/repository"
	"portfolio-api/internal/service"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestServer(t *testing.T, trustedProxies ...string) http.Handler {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, client.Migrate(db))

	log := zap.NewNop()
	auth, err := service.NewAuthService(config.Admin{Password: "s3cret", TokenSecret: "k"}, repository.NewLoginAttemptRepository(db), log)
	require.NoError(t, err)

	storage, err := client.NewS3Client(t.Context(), &config.Storage{})
	require.NoError(t, err)

	srv, err := NewServer(Services{
		Auth:   auth,
		Blog:   service.NewBlogService(repository.NewPostRepository(db)),
		Upload: service.NewUploadService(storage),
	}, Options{
		BaseURL:        "http://localhost:5173",
		TrustedProxies: trustedProxies,
	}, log)
	require.NoError(t, err)
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "portfolio_http_requests_total")
}

func TestBlogRoutesRequireAdmin(t *testing.T) {
	h := newTestServer(t)
	post := `{"title":"Hello","slug":"hello","content":"body"}`

	rec := do(t, h, http.MethodPost, "/api/posts", post, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/login", `{"password":"s3cret"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.True(t, login.Success)
	bearer := map[string]string{"Authorization": "Bearer " + login.Token}

	rec = do(t, h, http.MethodPost, "/api/posts", post, bearer)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/posts", post, map[string]string{"X-Admin-Auth": "s3cret"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/post?slug=hello", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Hello"`)

	rec = do(t, h, http.MethodGet, "/api/post", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"ID or Slug required"}`, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/api/post?id=1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/post?id=1", "", bearer)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Post deleted"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/posts", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestLoginLockoutOverHTTP(t *testing.T) {
	h := newTestServer(t)
	headers := map[string]string{"X-Forwarded-For": "198.51.100.7"}

	for i := 0; i < 5; i++ {
		rec := do(t, h, http.MethodPost, "/api/login", `{"password":"wrong"}`, headers)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := do(t, h, http.MethodPost, "/api/login", `{"password":"s3cret"}`, headers)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"Too many attempts. Please try again in 15 minutes."}`, rec.Body.String())
}

func TestLoginLockoutIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	h := newTestServer(t)

	for i := 0; i < 5; i++ {
		headers := map[string]string{"X-Forwarded-For": fmt.Sprintf("10.0.0.%d", i)}
		rec := do(t, h, http.MethodPost, "/api/login", `{"password":"wrong"}`, headers)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := do(t, h, http.MethodPost, "/api/login", `{"password":"wrong"}`, map[string]string{"X-Forwarded-For": "10.0.0.5"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/login", `{"password":"s3cret"}`, map[string]string{"X-Real-IP": "10.0.0.6"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestLoginLockoutBehindTrustedProxy(t *testing.T) {
	// httptest requests arrive from 192.0.2.1
	h := newTestServer(t, "192.0.2.0/24")
	attacker := map[string]string{"X-Forwarded-For": "203.0.113.9"}

	for i := 0; i < 5; i++ {
		rec := do(t, h, http.MethodPost, "/api/login", `{"password":"wrong"}`, attacker)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := do(t, h, http.MethodPost, "/api/login", `{"password":"s3cret"}`, attacker)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/login", `{"password":"s3cret"}`, map[string]string{"X-Forwarded-For": "203.0.113.10"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewServer_InvalidTrustedProxy(t *testing.T) {
	_, err := NewServer(Services{}, Options{TrustedProxies: []string{"not-a-cidr"}}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-cidr")
}

func TestUploadWithoutStorage(t *testing.T) {
	h := newTestServer(t)
	admin := map[string]string{"X-Admin-Auth": "s3cret"}

	rec := do(t, h, http.MethodPost, "/api/upload", `{"filename":"a.png","contentType":"image/png"}`, admin)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/upload", `{"filename":"a.pdf","contentType":"application/pdf"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/upload", `{"filename":"a.png"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
