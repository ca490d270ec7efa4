package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout puts a deadline on every request's context. It writes nothing
// itself: stores and services fail with context.DeadlineExceeded and the
// handler answers with the 504 envelope, so the response has one status line.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
