package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RejectRecorder is told about every request the limiter turns away.
type RejectRecorder interface {
	RecordRateLimited(route string)
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter gives every client IP its own token bucket. It guards the
// unauthenticated endpoints that do expensive work (password hashing), so it
// keys on address only.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	rate     rate.Limit
	burst    int
	logger   *slog.Logger
	recorder RejectRecorder
	now      func() time.Time
}

// NewRateLimiter allows perMinute requests per client per minute, all of
// which may arrive at once.
func NewRateLimiter(perMinute int, logger *slog.Logger, recorder RejectRecorder) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &RateLimiter{
		clients:  make(map[string]*clientLimiter),
		rate:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = rl.now()
	return c.limiter
}

// Handler rejects a client's request with 429 once its bucket is empty.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		reservation := rl.limiterFor(key).ReserveN(rl.now(), 1)
		if delay := reservation.DelayFrom(rl.now()); delay > 0 {
			reservation.CancelAt(rl.now())

			rl.logger.Warn("rate limit exceeded",
				slog.String("client", key),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			if rl.recorder != nil {
				rl.recorder.RecordRateLimited(r.URL.Path)
			}

			w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			if err := json.NewEncoder(w).Encode(map[string]string{
				"error_message": "Too many requests, try again later",
			}); err != nil {
				rl.logger.Error("failed to encode JSON response", slog.String("error", err.Error()))
			}
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Sweep forgets clients idle for longer than idle and returns how many were
// dropped. A forgotten client starts again with a full bucket, which is what
// it would have refilled to anyway.
func (rl *RateLimiter) Sweep(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idle)
	dropped := 0
	for key, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
			dropped++
		}
	}
	return dropped
}

// Run sweeps every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep(interval)
		}
	}
}

// clientIP is the request's address without the port. chi's RealIP
// middleware, installed ahead of this one, has already replaced RemoteAddr
// with the forwarded address when there is one.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
