package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/drink-tracker/internal/apperror"
	"github.com/sakif/drink-tracker/internal/auth"
	"github.com/sakif/drink-tracker/internal/model"
)

// AccountService is the part of service.AuthService the handlers need.
//
// Handlers depend on small interfaces like this one rather than on concrete
// services, so tests can hand in a stub without a database.
type AccountService interface {
	Register(ctx context.Context, in model.NewUser) (int64, error)
	Login(ctx context.Context, username, password string) (*model.LoginResult, error)
}

// UserHandler serves account creation and login.
type UserHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

func NewUserHandler(accounts AccountService, logger *slog.Logger) *UserHandler {
	return &UserHandler{accounts: accounts, logger: logger}
}

type newUserResponse struct {
	NewUserID int64 `json:"new_user_id"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/users
// REQUEST BODY: {"username", "password", "email"?, "birthdate", "gender"}
// RESPONSE: 201 {"new_user_id": 12}
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in model.NewUser
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	id, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserResponse{NewUserID: id})
}

// HandleLogin exchanges a username and password for a login token.
//
// HTTP: POST /api/login
// RESPONSE: 201 {"user_id", "login_token", "expiry"}
func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.accounts.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// currentUser returns the authenticated caller. Routes behind Gate.Required
// always have one; the check guards against a route registered without it.
func currentUser(r *http.Request) (int64, error) {
	id := auth.IdentityFrom(r.Context())
	if id.Anonymous() {
		return 0, apperror.Unauthorized(apperror.NoToken)
	}
	return id.ID(), nil
}
