package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/taskchat/internal/config"
	"github.com/thereayou/taskchat/internal/metrics"
	"github.com/thereayou/taskchat/pkg/auth"
)

type noBlacklist struct{}

func (noBlacklist) Revoke(context.Context, string, time.Duration) error { return nil }
func (noBlacklist) IsRevoked(context.Context, string) (bool, error)     { return false, nil }

func testRouter(t *testing.T, ready func(context.Context) error) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))

	r := gin.New()
	APIEndpoints(r, &config.Config{UploadPrefix: "/api/uploads", PostRate: 1, PostBurst: 1}, Deps{
		JWT:       auth.NewJWTManager("secret", time.Hour),
		Blacklist: noBlacklist{},
		Metrics:   metrics.New(),
		UploadDir: dir,
		Ready:     ready,
	})
	return r
}

func serve(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestInfrastructureRoutes(t *testing.T) {
	r := testRouter(t, func(context.Context) error { return nil })

	assert.Equal(t, http.StatusOK, serve(r, "/healthz").Code)
	assert.Equal(t, http.StatusOK, serve(r, "/metrics").Code)

	rec := serve(r, "/uploads/a.txt")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "sandbox")

	assert.Equal(t, http.StatusUnauthorized, serve(r, "/chat/rooms").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/auth/me").Code)
}

func TestHealthzReportsDependencyFailure(t *testing.T) {
	r := testRouter(t, func(context.Context) error { return errors.New("redis down") })

	assert.Equal(t, http.StatusServiceUnavailable, serve(r, "/healthz").Code)
}

func TestStaticRoute(t *testing.T) {
	for prefix, want := range map[string]string{
		"/api/uploads":  "/uploads",
		"/api/uploads/": "/uploads",
		"/files":        "/files",
		"/api":          "/uploads",
		"":              "/uploads",
	} {
		assert.Equal(t, want, staticRoute(prefix), prefix)
	}
}
