package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sakif/drink-tracker/internal/apperror"
	"github.com/sakif/drink-tracker/internal/auth"
	"github.com/sakif/drink-tracker/internal/model"
	"github.com/sakif/drink-tracker/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	users  map[string]*model.User // keyed by username
	nextID int64
	// set to simulate a database failure
	createErr error
	getErr    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User), nextID: 2}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	if _, ok := f.users[user.Username]; ok {
		return 0, apperror.Conflict("That username is already taken. Please choose a different username.")
	}
	stored := *user
	stored.ID = f.nextID
	f.nextID++
	f.users[user.Username] = &stored
	return stored.ID, nil
}

func (f *fakeUserRepo) GetUserCredentials(_ context.Context, username string) (*model.Credentials, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[username]
	if !ok {
		return nil, apperror.NotFound("user", username)
	}
	return &model.Credentials{UserID: u.ID, HashedPassword: u.HashedPassword}, nil
}

// fakeLoginSessions is an in-memory repository.LoginSessionRepository.
type fakeLoginSessions struct {
	rows      map[string]model.LoginSession
	createErr error
	purged    []time.Time
}

func newFakeLoginSessions() *fakeLoginSessions {
	return &fakeLoginSessions{rows: make(map[string]model.LoginSession)}
}

func (f *fakeLoginSessions) CreateLoginSession(_ context.Context, s model.LoginSession) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.rows[s.TokenID] = s
	return nil
}

func (f *fakeLoginSessions) GetLoginSession(_ context.Context, tokenID string) (*model.LoginSession, error) {
	s, ok := f.rows[tokenID]
	if !ok {
		return nil, apperror.NotFound("login session", tokenID)
	}
	return &s, nil
}

func (f *fakeLoginSessions) PurgeLoginSessions(_ context.Context, before time.Time) (int64, error) {
	f.purged = append(f.purged, before)
	var n int64
	for id, s := range f.rows {
		if s.Expiry.Before(before) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

var (
	_ repository.UserRepository         = (*fakeUserRepo)(nil)
	_ repository.LoginSessionRepository = (*fakeLoginSessions)(nil)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestAuthService(t *testing.T, users *fakeUserRepo, sessions *fakeLoginSessions) (*AuthService, *auth.TokenService) {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	// bcrypt's minimum cost keeps the tests fast
	return NewAuthService(users, sessions, ts, auth.NewPasswordService(4), 0, testLogger()), ts
}

func validUser(name string) model.NewUser {
	return model.NewUser{Username: name, Password: "hunter22", Birthdate: "1990-04-01", Gender: "f"}
}

// =========================================================================
// Register TESTS
// =========================================================================

func TestRegister_StoresHashNotPassword(t *testing.T) {
	users := newFakeUserRepo()
	svc, _ := newTestAuthService(t, users, newFakeLoginSessions())

	id, err := svc.Register(context.Background(), validUser("alice"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if id != 2 {
		t.Errorf("Register() id = %d, want 2", id)
	}
	stored := users.users["alice"]
	if stored.HashedPassword == "hunter22" || stored.HashedPassword == "" {
		t.Errorf("stored password %q should be a bcrypt hash", stored.HashedPassword)
	}
	if stored.Email != nil {
		t.Error("missing email should stay nil")
	}
}

func TestRegister_Validation(t *testing.T) {
	blankEmail := "  "
	cases := []struct {
		name    string
		mutate  func(*model.NewUser)
		message string
	}{
		{"no username", func(u *model.NewUser) { u.Username = " " }, "Missing username or password"},
		{"no password", func(u *model.NewUser) { u.Password = "" }, "Missing username or password"},
		{"no birthdate", func(u *model.NewUser) { u.Birthdate = "" }, "Missing fields"},
		{"no gender", func(u *model.NewUser) { u.Gender = "" }, "Missing fields"},
		{"bad birthdate", func(u *model.NewUser) { u.Birthdate = "01/04/1990" }, "Birthdate must be a date (YYYY-MM-DD)"},
		{"long password", func(u *model.NewUser) { u.Password = string(make([]byte, 73)) }, "Password must be 72 bytes or fewer"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			users := newFakeUserRepo()
			svc, _ := newTestAuthService(t, users, newFakeLoginSessions())
			in := validUser("bob")
			in.Email = &blankEmail
			tc.mutate(&in)

			_, err := svc.Register(context.Background(), in)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Register() error = %v, want validation error", err)
			}
			if err.Error() != tc.message {
				t.Errorf("message = %q, want %q", err.Error(), tc.message)
			}
			if len(users.users) != 0 {
				t.Error("nothing should be stored when validation fails")
			}
		})
	}
}

func TestRegister_DuplicateIsConflict(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo(), newFakeLoginSessions())
	if _, err := svc.Register(context.Background(), validUser("carol")); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	_, err := svc.Register(context.Background(), validUser("carol"))
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Register() error = %v, want conflict", err)
	}
}

// =========================================================================
// Login TESTS
// =========================================================================

func TestLogin_IssuesStoredToken(t *testing.T) {
	users := newFakeUserRepo()
	sessions := newFakeLoginSessions()
	svc, tokens := newTestAuthService(t, users, sessions)
	id, _ := svc.Register(context.Background(), validUser("dave"))

	before := time.Now()
	result, err := svc.Login(context.Background(), "dave", "hunter22")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.UserID != id {
		t.Errorf("UserID = %d, want %d", result.UserID, id)
	}

	tokenID, err := tokens.Parse(result.LoginToken)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	stored, ok := sessions.rows[tokenID]
	if !ok {
		t.Fatal("login session was not stored")
	}
	if !stored.Expiry.Equal(result.Expiry.Time) {
		t.Errorf("stored expiry %v != returned expiry %v", stored.Expiry, result.Expiry)
	}
	if got := result.Expiry.Sub(before); got < DefaultTokenTTL-2*time.Second || got > DefaultTokenTTL+time.Second {
		t.Errorf("expiry is %v from now, want about one week", got)
	}
}

func TestLogin_MultipleTokensPerUser(t *testing.T) {
	sessions := newFakeLoginSessions()
	svc, _ := newTestAuthService(t, newFakeUserRepo(), sessions)
	svc.Register(context.Background(), validUser("erin"))

	a, _ := svc.Login(context.Background(), "erin", "hunter22")
	b, _ := svc.Login(context.Background(), "erin", "hunter22")

	if a.LoginToken == b.LoginToken {
		t.Error("each login must issue a new token")
	}
	if len(sessions.rows) != 2 {
		t.Errorf("stored sessions = %d, want 2", len(sessions.rows))
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	users := newFakeUserRepo()
	sessions := newFakeLoginSessions()
	svc, _ := newTestAuthService(t, users, sessions)
	svc.Register(context.Background(), validUser("frank"))

	for _, tc := range []struct{ name, user, pass string }{
		{"wrong password", "frank", "nope"},
		{"unknown user", "ghost", "hunter22"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tc.user, tc.pass)
			status, msg := apperror.Classify(err)
			if status != 401 || msg != "Invalid username or password" {
				t.Errorf("Classify = (%d, %q), want 401 bad credentials", status, msg)
			}
		})
	}
	if len(sessions.rows) != 0 {
		t.Error("failed logins must not create sessions")
	}
}

func TestLogin_RepositoryErrorsPropagate(t *testing.T) {
	users := newFakeUserRepo()
	users.getErr = errors.New("database is on fire")
	svc, _ := newTestAuthService(t, users, newFakeLoginSessions())

	_, err := svc.Login(context.Background(), "x", "y")
	if !apperror.IsInternal(err) {
		t.Fatalf("Login() error = %v, want an internal error", err)
	}
}
