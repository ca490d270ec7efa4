package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError so the API keeps one
// shape. Success bodies are the domain objects (or a small wrapper such as
// {"new_drink_id": 7}); failures are always:
//
//	{"error_message": "No drink of ID 9999 exists"}
//
// The mapping from error to status lives in apperror.Classify, shared with the
// auth middleware, so a 401 written by the gate and one written here look the
// same to the client.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/drink-tracker/internal/apperror"
)

// maxBodyBytes caps request bodies. The largest legitimate body is a drink
// with its recipe, which is a few KB.
const maxBodyBytes = 1 << 20

// ErrorResponse is the envelope of every failed request.
type ErrorResponse struct {
	ErrorMessage string `json:"error_message"`
}

// writeJSON sends data as JSON with the given status code.
//
// Headers and status must be written before the body; once Encode starts
// writing, header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, so logging is all that is left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError classifies err and writes the error envelope.
//
// INTERNAL ERRORS:
// A 500 never carries the underlying error text, which may contain SQL or
// file paths. Instead the full error is logged under a fresh incident id, so
// a report from a user can still be matched to a log line.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, message := apperror.Classify(err)

	if apperror.IsInternal(err) {
		logger.Error("request failed",
			slog.String("incident", xid.New().String()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	} else if status == http.StatusGatewayTimeout {
		logger.Warn("request timed out",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	writeJSON(w, status, ErrorResponse{ErrorMessage: message})
}

// decodeJSON reads the request body into dst. Any decoding problem is a
// validation error; the decoder's own message is not shown to clients.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("body", "Request body too large")
		}
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}
	return nil
}
