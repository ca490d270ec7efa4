package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/drink-tracker/internal/auth"
	"github.com/sakif/drink-tracker/internal/handler"
	"github.com/sakif/drink-tracker/internal/model"
	"github.com/sakif/drink-tracker/internal/repository"
)

// MockAccounts records its inputs and returns canned results.
type MockAccounts struct {
	CapturedUser  model.NewUser
	CapturedLogin [2]string
	ReturnID      int64
	ReturnLogin   *model.LoginResult
	ReturnErr     error
}

func (m *MockAccounts) Register(_ context.Context, in model.NewUser) (int64, error) {
	m.CapturedUser = in
	return m.ReturnID, m.ReturnErr
}

func (m *MockAccounts) Login(_ context.Context, username, password string) (*model.LoginResult, error) {
	m.CapturedLogin = [2]string{username, password}
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.ReturnLogin, nil
}

type MockIngredients struct {
	Calls         int
	CapturedF     repository.IngredientFilter
	CapturedIn    model.NewIngredient
	CapturedOwner int64
	CapturedID    int64
	ReturnList    []model.Ingredient
	ReturnID      int64
	ReturnErr     error
}

func (m *MockIngredients) List(_ context.Context, f repository.IngredientFilter) ([]model.Ingredient, error) {
	m.Calls++
	m.CapturedF = f
	return m.ReturnList, m.ReturnErr
}

func (m *MockIngredients) Create(_ context.Context, owner int64, in model.NewIngredient) (int64, error) {
	m.Calls++
	m.CapturedOwner, m.CapturedIn = owner, in
	return m.ReturnID, m.ReturnErr
}

func (m *MockIngredients) Delete(_ context.Context, id, owner int64) error {
	m.Calls++
	m.CapturedID, m.CapturedOwner = id, owner
	return m.ReturnErr
}

type MockDrinks struct {
	CapturedF      repository.DrinkFilter
	CapturedIn     model.NewDrink
	CapturedID     int64
	CapturedUserID *int64
	CapturedOwner  int64
	ReturnList     []model.DrinkOverview
	ReturnDrink    *model.Drink
	ReturnID       int64
	ReturnErr      error
}

func (m *MockDrinks) List(_ context.Context, f repository.DrinkFilter) ([]model.DrinkOverview, error) {
	m.CapturedF = f
	return m.ReturnList, m.ReturnErr
}

func (m *MockDrinks) Get(_ context.Context, id int64, userID *int64) (*model.Drink, error) {
	m.CapturedID, m.CapturedUserID = id, userID
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.ReturnDrink, nil
}

func (m *MockDrinks) Create(_ context.Context, owner int64, in model.NewDrink) (int64, error) {
	m.CapturedOwner, m.CapturedIn = owner, in
	return m.ReturnID, m.ReturnErr
}

func (m *MockDrinks) Delete(_ context.Context, id, owner int64) error {
	m.CapturedID, m.CapturedOwner = id, owner
	return m.ReturnErr
}

type MockSessions struct {
	CapturedF       repository.SessionFilter
	CapturedIn      model.NewSessionDrink
	CapturedOwner   int64
	CapturedSession int64
	CapturedPairing int64
	ReturnList      []model.SessionOverview
	ReturnSession   *model.DrinkingSession
	ReturnID        int64
	ReturnErr       error
}

func (m *MockSessions) Create(_ context.Context, owner int64) (int64, error) {
	m.CapturedOwner = owner
	return m.ReturnID, m.ReturnErr
}

func (m *MockSessions) List(_ context.Context, f repository.SessionFilter) ([]model.SessionOverview, error) {
	m.CapturedF = f
	return m.ReturnList, m.ReturnErr
}

func (m *MockSessions) Get(_ context.Context, id, owner int64) (*model.DrinkingSession, error) {
	m.CapturedSession, m.CapturedOwner = id, owner
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.ReturnSession, nil
}

func (m *MockSessions) AddDrink(_ context.Context, owner, sessionID int64, in model.NewSessionDrink) (int64, error) {
	m.CapturedOwner, m.CapturedSession, m.CapturedIn = owner, sessionID, in
	return m.ReturnID, m.ReturnErr
}

func (m *MockSessions) RemoveDrink(_ context.Context, owner, sessionID, pairingID int64) error {
	m.CapturedOwner, m.CapturedSession, m.CapturedPairing = owner, sessionID, pairingID
	return m.ReturnErr
}

func (m *MockSessions) Delete(_ context.Context, owner, id int64) error {
	m.CapturedOwner, m.CapturedSession = owner, id
	return m.ReturnErr
}

type tagCall struct {
	Op       string
	Kind     model.TaggableKind
	EntityID int64
	TagID    int64
	Owner    int64
}

type MockTags struct {
	CapturedType string
	Calls        []tagCall
	ReturnList   []model.Tag
	ReturnErr    error
}

func (m *MockTags) List(_ context.Context, tagType string) ([]model.Tag, error) {
	m.CapturedType = tagType
	return m.ReturnList, m.ReturnErr
}

func (m *MockTags) Attach(_ context.Context, kind model.TaggableKind, entityID, tagID, owner int64) error {
	m.Calls = append(m.Calls, tagCall{"attach", kind, entityID, tagID, owner})
	return m.ReturnErr
}

func (m *MockTags) Detach(_ context.Context, kind model.TaggableKind, entityID, tagID, owner int64) error {
	m.Calls = append(m.Calls, tagCall{"detach", kind, entityID, tagID, owner})
	return m.ReturnErr
}

var (
	_ handler.AccountService    = (*MockAccounts)(nil)
	_ handler.IngredientService = (*MockIngredients)(nil)
	_ handler.DrinkService      = (*MockDrinks)(nil)
	_ handler.SessionService    = (*MockSessions)(nil)
	_ handler.TagService        = (*MockTags)(nil)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// asUser stands in for the auth gate: it marks every request as coming from
// userID. Zero leaves requests anonymous.
func asUser(userID int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID != 0 {
				id := userID
				r = r.WithContext(auth.WithIdentity(r.Context(), auth.Identity{UserID: &id}))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// serve runs one request through a router carrying the route pattern, so
// URL parameters resolve as they do in production.
func serve(t *testing.T, userID int64, method, pattern, target, body string, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Use(asUser(userID))
	r.MethodFunc(method, pattern, h)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response %q: %v", rr.Body.String(), err)
	}
	return out
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[handler.ErrorResponse](t, rr).ErrorMessage
}
