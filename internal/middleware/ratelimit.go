package middleware

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"
)

type windowEntry struct {
	count       int
	windowStart time.Time
}

// Governor admits requests per key within a fixed window. Each server
// instance owns its own governor; the map does not coordinate across
// processes.
type Governor struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	limit   int
	window  time.Duration
}

func NewGovernor(limit int, window time.Duration) *Governor {
	return &Governor{
		entries: make(map[string]*windowEntry),
		limit:   limit,
		window:  window,
	}
}

// Admit decides whether a request for key may proceed at time now. When
// denied, retryAfter is the number of seconds until the window resets,
// always at least 1. Stale entries are purged opportunistically under the
// same lock as the increment, so a concurrent purge can never split an
// increment-and-compare.
func (g *Governor) Admit(key string, now time.Time) (allowed bool, retryAfter int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for k, e := range g.entries {
		if now.Sub(e.windowStart) > g.window {
			delete(g.entries, k)
		}
	}

	e, ok := g.entries[key]
	if !ok || now.Sub(e.windowStart) > g.window {
		g.entries[key] = &windowEntry{count: 1, windowStart: now}
		return true, 0
	}

	if e.count >= g.limit {
		remaining := g.window - now.Sub(e.windowStart)
		secs := int(math.Ceil(remaining.Seconds()))
		if secs < 1 {
			secs = 1
		}
		return false, secs
	}

	e.count++
	return true, 0
}

// Middleware applies the governor keyed by client address, used on the
// public auth routes.
func (g *Governor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := g.Admit(r.RemoteAddr, time.Now())
		if !allowed {
			msg := fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfter)
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", msg, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
