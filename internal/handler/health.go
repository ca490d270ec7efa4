package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// HandleRTT answers the client's round-trip probe with an empty 200.
//
// HTTP: GET /api/rtt
func HandleRTT(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandleReady reports readiness: 200 once the database answers a ping
// through the pool, 503 otherwise. Unlike /api/rtt it touches the store.
//
// HTTP: GET /healthz
func HandleReady(db Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{ErrorMessage: "Database unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
