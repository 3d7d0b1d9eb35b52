package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/carlmjohnson/be"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestAllowWindow(t *testing.T) {
	clk := &clock{t: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{Requests: 2, Window: time.Minute, Clock: clk.now})
	defer rl.Stop()

	be.True(t, rl.Allow("10.0.0.1"))
	be.True(t, rl.Allow("10.0.0.1"))
	be.False(t, rl.Allow("10.0.0.1"))
	be.True(t, rl.Allow("10.0.0.2"))
	be.Equal(t, 2, rl.ActiveClients())
	be.Equal(t, int64(1), rl.GetMetrics().TotalHits)

	clk.t = clk.t.Add(20 * time.Second)
	be.Equal(t, 40*time.Second, rl.RetryAfter("10.0.0.1"))

	clk.t = clk.t.Add(40 * time.Second)
	be.True(t, rl.Allow("10.0.0.1"))
}

func TestCleanupStaleEntries(t *testing.T) {
	clk := &clock{t: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{Requests: 1, Window: time.Minute, Clock: clk.now})
	defer rl.Stop()

	rl.Allow("a")
	clk.t = clk.t.Add(3 * time.Minute)
	rl.Allow("b")
	rl.cleanupStaleEntries()
	be.Equal(t, 1, rl.ActiveClients())
}

func TestMiddleware(t *testing.T) {
	clk := &clock{t: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{Requests: 1, Window: time.Hour, Clock: clk.now})
	defer rl.Stop()
	rl.Stop()

	var limited bool
	h := rl.Middleware(
		func(r *http.Request) string { return "ip" },
		func(w http.ResponseWriter, r *http.Request) {
			limited = true
			w.WriteHeader(http.StatusTooManyRequests)
		},
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	be.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	be.Equal(t, http.StatusTooManyRequests, rr.Code)
	be.True(t, limited)
	be.Equal(t, "3600", rr.Header().Get("Retry-After"))
}
