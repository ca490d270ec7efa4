package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/drink-tracker/internal/apperror"
	"github.com/sakif/drink-tracker/internal/model"
)

// SessionLookup is the slice of the login session store the Gate needs.
// It must return an apperror NotFound when the token id is unknown.
type SessionLookup interface {
	GetLoginSession(ctx context.Context, tokenID string) (*model.LoginSession, error)
}

// OutcomeRecorder counts auth outcomes. The metrics package implements it.
type OutcomeRecorder interface {
	RecordAuth(outcome apperror.AuthOutcome)
}

// Identity is who the request is acting as. UserID is nil for anonymous
// requests.
type Identity struct {
	UserID  *int64
	Outcome apperror.AuthOutcome
}

// Anonymous reports whether no user is attached.
func (i Identity) Anonymous() bool {
	return i.UserID == nil
}

// ID returns the user id, or 0 when anonymous.
func (i Identity) ID() int64 {
	if i.UserID == nil {
		return 0
	}
	return *i.UserID
}

type contextKey struct{}

// WithIdentity stores id in ctx. The Gate middleware calls it; tests use it
// to fake an authenticated request.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFrom returns the identity the Gate attached, or an anonymous one.
func IdentityFrom(ctx context.Context) Identity {
	if id, ok := ctx.Value(contextKey{}).(Identity); ok {
		return id
	}
	return Identity{Outcome: apperror.NoToken}
}

// errLookupFailed marks a store failure while resolving a token.
var errLookupFailed = errors.New("auth: looking up login session")

// Gate resolves bearer tokens into identities.
type Gate struct {
	sessions SessionLookup
	tokens   *TokenService
	logger   *slog.Logger
	recorder OutcomeRecorder
	now      func() time.Time
}

type GateOption func(*Gate)

// WithRecorder reports every outcome to r.
func WithRecorder(r OutcomeRecorder) GateOption {
	return func(g *Gate) { g.recorder = r }
}

// WithClock replaces time.Now, for tests that need a fixed "now".
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

func NewGate(sessions SessionLookup, tokens *TokenService, logger *slog.Logger, opts ...GateOption) *Gate {
	g := &Gate{
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate resolves the Authorization header value.
//
//	no token, optional  → anonymous identity
//	no token, required  → Unauthorized(no_token)
//	bad or unknown      → Unauthorized(invalid_token)
//	expiry <= now       → Unauthorized(expired_token)
//	otherwise           → the session's user
//
// A token that is present is always checked, even on optional routes.
func (g *Gate) Authenticate(ctx context.Context, header string, required bool) (Identity, error) {
	id, err := g.authenticate(ctx, header, required)
	if g.recorder != nil {
		var appErr *apperror.AppError
		switch {
		case err == nil:
			g.recorder.RecordAuth(id.Outcome)
		case errors.As(err, &appErr):
			g.recorder.RecordAuth(appErr.Outcome)
		}
	}
	return id, err
}

func (g *Gate) authenticate(ctx context.Context, header string, required bool) (Identity, error) {
	raw, present := bearerToken(header)
	if !present {
		if required {
			return Identity{}, apperror.Unauthorized(apperror.NoToken)
		}
		return Identity{Outcome: apperror.NoToken}, nil
	}

	tokenID, err := g.tokens.Parse(raw)
	if err != nil {
		return Identity{}, apperror.Unauthorized(apperror.InvalidToken)
	}

	session, err := g.sessions.GetLoginSession(ctx, tokenID)
	if errors.Is(err, apperror.ErrNotFound) {
		return Identity{}, apperror.Unauthorized(apperror.InvalidToken)
	}
	if err != nil {
		return Identity{}, errors.Join(errLookupFailed, err)
	}

	if session.Expired(g.now()) {
		return Identity{}, apperror.Unauthorized(apperror.ExpiredToken)
	}

	userID := session.UserID
	return Identity{UserID: &userID, Outcome: apperror.ValidToken}, nil
}

// bearerToken pulls the token out of "Bearer <token>". Any other non-empty
// header still counts as a token (one that will fail to parse).
func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" || strings.EqualFold(header, "Bearer") {
		return "", false
	}
	scheme, rest, found := strings.Cut(header, " ")
	if found && strings.EqualFold(scheme, "Bearer") {
		rest = strings.TrimSpace(rest)
		return rest, rest != ""
	}
	return header, true
}

// Required rejects requests without a valid token.
func (g *Gate) Required() func(http.Handler) http.Handler {
	return g.middleware(true)
}

// Optional lets anonymous requests through but still rejects bad tokens.
func (g *Gate) Optional() func(http.Handler) http.Handler {
	return g.middleware(false)
}

func (g *Gate) middleware(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := g.Authenticate(r.Context(), r.Header.Get("Authorization"), required)
			if err != nil {
				g.reject(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := apperror.Classify(err)
	if errors.Is(err, errLookupFailed) {
		status, msg = http.StatusInternalServerError, "Internal error while authenticating"
		g.logger.Error("auth lookup failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error_message": msg})
}
