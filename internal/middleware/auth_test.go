package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"procurement/internal/metrics"
	"procurement/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var secret = []byte("middleware-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func countingLoader(calls *atomic.Int32, grants map[string][]string) PermissionLoader {
	return func(ctx context.Context, role string) ([]string, error) {
		calls.Add(1)
		codes, ok := grants[role]
		if !ok {
			return nil, errors.New("no such role")
		}
		return codes, nil
	}
}

func newRouter(auth *Authenticator, codes ...string) *gin.Engine {
	r := gin.New()
	r.GET("/thing", auth.Authenticate(), auth.RequirePermission(codes...), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := service.IssueToken(secret, "user-1", role, time.Hour, time.Now())
	require.NoError(t, err)
	return tok
}

func TestAuthenticate(t *testing.T) {
	var calls atomic.Int32
	auth := NewAuthenticator(secret, countingLoader(&calls, map[string][]string{
		"approver":  {"approve_purchase_orders"},
		"requester": {"create_purchase_orders"},
	}), 16, time.Minute, false)
	r := newRouter(auth, "approve_purchase_orders")

	tests := []struct {
		name   string
		header string
		cookie string
		want   int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "bearer allowed", header: "Bearer " + token(t, "approver"), want: http.StatusOK},
		{name: "cookie allowed", cookie: token(t, "approver"), want: http.StatusOK},
		{name: "missing permission", header: "Bearer " + token(t, "requester"), want: http.StatusForbidden},
		{name: "unknown role", header: "Bearer " + token(t, "ghost"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/thing", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: tokenCookie, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "user-1", w.Body.String())
			}
		})
	}
}

func TestPermissionCache(t *testing.T) {
	var calls atomic.Int32
	grants := map[string][]string{"approver": {"view_expenses"}}
	auth := NewAuthenticator(secret, countingLoader(&calls, grants), 16, time.Minute, false)
	ctx := context.Background()

	perms, err := auth.Permissions(ctx, "approver")
	require.NoError(t, err)
	assert.True(t, perms.Has("view_expenses"))

	_, err = auth.Permissions(ctx, "approver")
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())

	grants["approver"] = []string{"approve_expenses"}
	auth.ClearPermissionCache("approver")
	perms, err = auth.Permissions(ctx, "approver")
	require.NoError(t, err)
	assert.True(t, perms.Has("approve_expenses"))
	assert.EqualValues(t, 2, calls.Load())

	auth.ClearPermissionCache("")
	_, err = auth.Permissions(ctx, "approver")
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestRequestIDAndLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(RequestID(), RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 26)

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, generated, entries[0].ContextMap()["request_id"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "abc-123", entries[1].ContextMap()["request_id"])
	assert.EqualValues(t, 500, entries[1].ContextMap()["status"])
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/expenses/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/api/expenses/:id", "200"))
	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/expenses/"+id, nil))
	}
	after := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/api/expenses/:id", "200"))
	assert.Equal(t, 2.0, after-before)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues(http.MethodGet, "unmatched", "404")), 1.0)
}
