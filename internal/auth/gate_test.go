package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/drink-tracker/internal/apperror"
	"github.com/sakif/drink-tracker/internal/model"
)

type fakeSessions struct {
	rows map[string]model.LoginSession
	err  error
}

func (f *fakeSessions) GetLoginSession(_ context.Context, tokenID string) (*model.LoginSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.rows[tokenID]
	if !ok {
		return nil, apperror.NotFound("login session", tokenID)
	}
	return &s, nil
}

type countingRecorder map[apperror.AuthOutcome]int

func (c countingRecorder) RecordAuth(o apperror.AuthOutcome) { c[o]++ }

var gateNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestGate(t *testing.T, sessions *fakeSessions, rec countingRecorder) (*Gate, *TokenService) {
	t.Helper()
	tokens := newTestTokenService(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGate(sessions, tokens, logger,
		WithClock(func() time.Time { return gateNow }),
		WithRecorder(rec),
	), tokens
}

func storeToken(t *testing.T, tokens *TokenService, sessions *fakeSessions, userID int64, expiry time.Time) string {
	t.Helper()
	issued, err := tokens.Issue(userID, time.Hour)
	require.NoError(t, err)
	sessions.rows[issued.TokenID] = model.LoginSession{
		TokenID: issued.TokenID,
		UserID:  userID,
		Expiry:  model.NewTimestamp(expiry),
	}
	return issued.Token
}

func TestAuthenticate(t *testing.T) {
	sessions := &fakeSessions{rows: map[string]model.LoginSession{}}
	rec := countingRecorder{}
	gate, tokens := newTestGate(t, sessions, rec)

	valid := storeToken(t, tokens, sessions, 5, gateNow.Add(time.Minute))
	atNow := storeToken(t, tokens, sessions, 5, gateNow)
	expired := storeToken(t, tokens, sessions, 5, gateNow.Add(-time.Minute))
	unknown, err := tokens.Issue(5, time.Hour) // signed but never stored
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		required bool
		wantUser int64
		wantErr  apperror.AuthOutcome
	}{
		{name: "no token optional", header: "", required: false},
		{name: "no token required", header: "", required: true, wantErr: apperror.NoToken},
		{name: "empty bearer required", header: "Bearer   ", required: true, wantErr: apperror.NoToken},
		{name: "valid", header: "Bearer " + valid, required: true, wantUser: 5},
		{name: "valid lowercase scheme", header: "bearer " + valid, wantUser: 5},
		{name: "expiry equal to now", header: "Bearer " + atNow, wantErr: apperror.ExpiredToken},
		{name: "expired on optional route", header: "Bearer " + expired, wantErr: apperror.ExpiredToken},
		{name: "not stored", header: "Bearer " + unknown.Token, wantErr: apperror.InvalidToken},
		{name: "garbage", header: "Bearer abc", required: true, wantErr: apperror.InvalidToken},
		{name: "other scheme", header: "Basic dXNlcjpwYXNz", wantErr: apperror.InvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := gate.Authenticate(context.Background(), tt.header, tt.required)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, apperror.ErrUnauthorized)
				var appErr *apperror.AppError
				require.True(t, errors.As(err, &appErr))
				assert.Equal(t, tt.wantErr, appErr.Outcome)
				return
			}
			require.NoError(t, err)
			if tt.wantUser == 0 {
				assert.True(t, id.Anonymous())
				return
			}
			assert.Equal(t, tt.wantUser, id.ID())
			assert.Equal(t, apperror.ValidToken, id.Outcome)
		})
	}

	assert.Equal(t, 2, rec[apperror.ValidToken])
	assert.Equal(t, 3, rec[apperror.InvalidToken])
	assert.Equal(t, 2, rec[apperror.ExpiredToken])
}

func TestGateMiddleware(t *testing.T) {
	sessions := &fakeSessions{rows: map[string]model.LoginSession{}}
	gate, tokens := newTestGate(t, sessions, countingRecorder{})
	valid := storeToken(t, tokens, sessions, 9, gateNow.Add(time.Hour))

	var seen Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	serve := func(mw func(http.Handler) http.Handler, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/ingredients", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		mw(next).ServeHTTP(rec, req)
		return rec
	}

	rec := serve(gate.Required(), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error_message":"Unauthorized: No token provided"}`, rec.Body.String())

	rec = serve(gate.Optional(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, seen.Anonymous())

	rec = serve(gate.Required(), "Bearer "+valid)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(9), seen.ID())

	rec = serve(gate.Optional(), "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error_message":"Unauthorized: Invalid token"}`, rec.Body.String())
}

func TestGateLookupFailure(t *testing.T) {
	sessions := &fakeSessions{rows: map[string]model.LoginSession{}}
	gate, tokens := newTestGate(t, sessions, countingRecorder{})
	token := storeToken(t, tokens, sessions, 9, gateNow.Add(time.Hour))
	sessions.err = errors.New("database is locked")

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	gate.Required()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error_message":"Internal error while authenticating"}`, rec.Body.String())
}

func TestIdentityFromEmptyContext(t *testing.T) {
	id := IdentityFrom(context.Background())
	assert.True(t, id.Anonymous())
	assert.Equal(t, int64(0), id.ID())
}
