package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"alignbox_chat/internal/limiter"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type failingStrategy struct{}

func (failingStrategy) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": GetRequestID(c)})
	})
	return r
}

func TestRequestIDGeneratesAndEchoes(t *testing.T) {
	r := newEngine(RequestID())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
	generated := w.Header().Get(HeaderRequestID)
	require.Len(t, generated, 36)
	require.Contains(t, w.Body.String(), generated)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
}

func TestRequestLoggerWritesStructuredEntry(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := newEngine(RequestID(), RequestLogger(log))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, logrus.InfoLevel, entry.Level)
	require.Equal(t, "http_request", entry.Data["action"])
	require.Equal(t, "/ping", entry.Data["path"])
	require.Equal(t, http.StatusOK, entry.Data["status"])
	require.Equal(t, w.Header().Get(HeaderRequestID), entry.Data["request_id"])

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestRateLimitRejectsOverBudget(t *testing.T) {
	log, _ := test.NewNullLogger()
	manager := limiter.NewManager(limiter.NewMemoryStrategy(), 2, time.Minute)
	r := newEngine(RateLimit(manager, log))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			require.JSONEq(t, `{"error":"too many requests"}`, w.Body.String())
		}
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitFailsOpen(t *testing.T) {
	log, hook := test.NewNullLogger()
	manager := limiter.NewManager(failingStrategy{}, 1, time.Minute)
	r := newEngine(RateLimit(manager, log))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}
