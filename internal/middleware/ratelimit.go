package middleware

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// RateLimiter implements per-caller sliding window rate limiting.
// Uses in-memory state, so each server instance enforces independently.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	mu          sync.Mutex
	callers     map[string]*callerWindow
	stop        chan struct{}
	stopOnce    sync.Once
}

type callerWindow struct {
	timestamps []time.Time
	lastAccess time.Time
}

// NewRateLimiter creates a rate limiter with the given requests-per-second limit.
// Call Close to stop the background cleanup.
func NewRateLimiter(maxPerSecond int) *RateLimiter {
	rl := newRateLimiter(maxPerSecond, time.Second)
	go rl.cleanup(60*time.Second, 5*time.Minute)
	return rl
}

func newRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		callers:     make(map[string]*callerWindow),
		stop:        make(chan struct{}),
	}
}

// Allow checks if a request from the given caller is allowed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cw, ok := rl.callers[key]
	if !ok {
		cw = &callerWindow{}
		rl.callers[key] = cw
	}

	// Remove timestamps outside the window
	cutoff := now.Add(-rl.window)
	start := 0
	for start < len(cw.timestamps) && cw.timestamps[start].Before(cutoff) {
		start++
	}
	cw.timestamps = cw.timestamps[start:]
	cw.lastAccess = now

	if len(cw.timestamps) >= rl.maxRequests {
		return false
	}

	cw.timestamps = append(cw.timestamps, now)
	return true
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// cleanup removes stale caller entries every interval.
func (rl *RateLimiter) cleanup(interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictIdle(time.Now().Add(-idle))
		}
	}
}

func (rl *RateLimiter) evictIdle(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, cw := range rl.callers {
		if cw.lastAccess.Before(cutoff) {
			delete(rl.callers, key)
		}
	}
}

// Middleware returns an HTTP middleware that applies rate limiting.
// Placed after Authorize, it keys on the caller subject; without an auth
// context it falls back to the client address.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientAddr(r)
		if authCtx := GetAuthContext(r.Context()); authCtx != nil {
			key = authCtx.Subject
		}

		if !rl.Allow(key) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":   "RATE_LIMIT_EXCEEDED",
				"message": "Too many requests. Please slow down.",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
