package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, l *Limiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/upgrade", func(c *gin.Context) {
		if !l.AllowUpgrade(c) {
			return
		}
		c.Status(http.StatusOK)
	})
	r.POST("/update", l.PresenceUpdateMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestAllowUpgradeWithinLimit(t *testing.T) {
	l, err := New("5-M", "5-M", nil)
	require.NoError(t, err)
	r := newTestRouter(t, l)

	req := httptest.NewRequest(http.MethodGet, "/upgrade", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAllowUpgradeRejectsOverLimit(t *testing.T) {
	l, err := New("1-M", "5-M", nil)
	require.NoError(t, err)
	r := newTestRouter(t, l)

	req := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/upgrade", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		return req
	}

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, req())
	assert.Equal(t, http.StatusOK, w1.Code)

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req())
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
}

func TestPresenceUpdateRateLimitIsIndependentOfUpgrade(t *testing.T) {
	l, err := New("1-M", "1-M", nil)
	require.NoError(t, err)
	r := newTestRouter(t, l)

	upgradeReq := httptest.NewRequest(http.MethodGet, "/upgrade", nil)
	upgradeReq.RemoteAddr = "10.0.0.3:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, upgradeReq)
	assert.Equal(t, http.StatusOK, w.Code)

	updateReq := httptest.NewRequest(http.MethodPost, "/update", nil)
	updateReq.RemoteAddr = "10.0.0.3:1234"
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, updateReq)
	assert.Equal(t, http.StatusOK, w2.Code, "upgrade and update limits must not share a bucket")
}
