// Package apperror defines the error kinds shared by every layer of the
// drink tracker and the single mapping from those kinds to HTTP.
//
// Services and stores return either a sentinel (wrapped) or an *AppError
// whose Err field is one of the sentinels. Handlers never inspect error
// strings; they call Classify and write the uniform envelope:
//
//	{"error_message": "..."}
package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

// GenericMessage is the only message an unclassified failure ever shows.
const GenericMessage = "Unknown internal server error"

// AuthOutcome names the result of resolving a bearer token.
type AuthOutcome string

const (
	NoToken      AuthOutcome = "no_token"
	InvalidToken AuthOutcome = "invalid_token"
	ExpiredToken AuthOutcome = "expired_token"
	ValidToken   AuthOutcome = "valid_token"
	// BadCredentials is not a token outcome; it is the login failure.
	BadCredentials AuthOutcome = "bad_credentials"
)

var authMessages = map[AuthOutcome]string{
	NoToken:        "Unauthorized: No token provided",
	InvalidToken:   "Unauthorized: Invalid token",
	ExpiredToken:   "Unauthorized: Token expired",
	BadCredentials: "Invalid username or password",
}

type AppError struct {
	Err     error       // sentinel kind
	Message string      // Human-readable error message, safe to show clients
	Field   string      // Optional: field causing the error
	Outcome AuthOutcome // Optional: set on ErrUnauthorized
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation. The message must already be the
// human-readable cause; raw constraint names never reach this constructor.
func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Unauthorized returns the 401 error for an auth outcome.
func Unauthorized(outcome AuthOutcome) *AppError {
	msg, ok := authMessages[outcome]
	if !ok {
		msg = authMessages[InvalidToken]
	}
	return &AppError{
		Err:     ErrUnauthorized,
		Message: msg,
		Outcome: outcome,
	}
}

// Classify maps err to an HTTP status and the message clients may see.
// Anything that is not an *AppError (or a deadline) collapses to a generic 500.
func Classify(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "Request timed out"
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, GenericMessage
	}

	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, appErr.Message
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, appErr.Message
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, appErr.Message
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, appErr.Message
	}
	return http.StatusInternalServerError, GenericMessage
}

// IsInternal reports whether Classify would hide err behind the generic message.
func IsInternal(err error) bool {
	status, _ := Classify(err)
	return status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout
}
