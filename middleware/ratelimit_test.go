package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func testLimiter(limit int, clock *fakeClock) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string]*clientRequest),
		limit:    limit,
		window:   time.Minute,
		now:      clock.now,
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
	rl := testLimiter(2, clock)

	ok, _ := rl.allow("a")
	assert.True(t, ok)
	ok, _ = rl.allow("a")
	assert.True(t, ok)

	ok, retry := rl.allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	ok, _ = rl.allow("b")
	assert.True(t, ok, "keys are counted separately")

	clock.t = clock.t.Add(time.Minute + time.Second)
	ok, _ = rl.allow("a")
	assert.True(t, ok, "window resets")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
	rl := testLimiter(5, clock)
	rl.allow("a")

	clock.t = clock.t.Add(2 * time.Minute)
	rl.allow("b")
	rl.cleanup()

	assert.NotContains(t, rl.requests, "a")
	assert.Contains(t, rl.requests, "b")
}

func TestRateLimiter_Middleware(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
	rl := testLimiter(1, clock)

	r := gin.New()
	r.GET("/ping", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "192.0.2.10:5000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, do().Code)
	w := do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"Rate limit exceeded","retry_after":60}`, w.Body.String())
}
