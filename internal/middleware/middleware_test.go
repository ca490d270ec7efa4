package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	routes []string
}

func (c *countingRecorder) RecordRateLimited(route string) {
	c.routes = append(c.routes, route)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimiter(t *testing.T) {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rec := &countingRecorder{}
	rl := NewRateLimiter(3, quietLogger(), rec)
	rl.now = func() time.Time { return clock }
	h := rl.Handler(okHandler())

	send := func(addr string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, requestFrom(addr))
		return rr
	}

	t.Run("burst then reject", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusCreated, send("10.0.0.1:5000").Code, "request %d", i)
		}
		rr := send("10.0.0.1:5001") // another port, same client
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.JSONEq(t, `{"error_message":"Too many requests, try again later"}`, rr.Body.String())
		assert.Equal(t, "21", rr.Header().Get("Retry-After"))
		assert.Equal(t, []string{"/api/login"}, rec.routes)
	})

	t.Run("clients are independent", func(t *testing.T) {
		assert.Equal(t, http.StatusCreated, send("10.0.0.2:5000").Code)
	})

	t.Run("bucket refills", func(t *testing.T) {
		clock = clock.Add(20 * time.Second)
		assert.Equal(t, http.StatusCreated, send("10.0.0.1:5000").Code)
		assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5000").Code)
	})

	t.Run("sweep drops idle clients", func(t *testing.T) {
		clock = clock.Add(10 * time.Minute)
		send("10.0.0.3:5000")

		dropped := rl.Sweep(5 * time.Minute)
		assert.Equal(t, 2, dropped)
		assert.Len(t, rl.clients, 1)
	})
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "192.168.1.4", clientIP(requestFrom("192.168.1.4:443")))
	assert.Equal(t, "2001:db8::1", clientIP(requestFrom("[2001:db8::1]:80")))
	// RealIP leaves a bare address
	assert.Equal(t, "203.0.113.9", clientIP(requestFrom("203.0.113.9")))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := chimiddleware.RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error_message":"x"}`))
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/drinks/9", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	require.NotEmpty(t, line)
	assert.Contains(t, line, "level=WARN")
	assert.Contains(t, line, "status=404")
	assert.Contains(t, line, "path=/api/drinks/9")
	assert.Contains(t, line, "bytes=21")
	assert.Contains(t, line, "requestID=req-42")
}

// brokenWriter accepts headers but fails every body write.
type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestRateLimiterLogsEncodeFailure(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRateLimiter(1, slog.New(slog.NewTextHandler(&buf, nil)), nil)
	h := rl.Handler(okHandler())

	h.ServeHTTP(httptest.NewRecorder(), requestFrom("10.0.0.9:5000"))
	w := brokenWriter{httptest.NewRecorder()}
	h.ServeHTTP(w, requestFrom("10.0.0.9:5000"))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, buf.String(), "failed to encode JSON response")
	assert.Contains(t, buf.String(), "connection reset")
}

// headerCounter counts status lines written through it.
type headerCounter struct {
	*httptest.ResponseRecorder
	calls int
}

func (h *headerCounter) WriteHeader(code int) {
	h.calls++
	h.ResponseRecorder.WriteHeader(code)
}

func TestTimeout(t *testing.T) {
	h := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		assert.ErrorIs(t, r.Context().Err(), context.DeadlineExceeded)
		w.WriteHeader(http.StatusGatewayTimeout)
	}))

	w := &headerCounter{ResponseRecorder: httptest.NewRecorder()}
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/drinks", nil))

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, 1, w.calls)
}
