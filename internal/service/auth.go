// Package service holds the request orchestration layer:
//
//	Handler (HTTP)  → parses requests, writes responses
//	Service         → validates input, enforces rules, orchestrates
//	Repository      → reads/writes the database
//
// Services take repository interfaces, never *sqlstore.Store, so tests can
// inject in-memory fakes. Validation that needs no database runs here,
// before a pooled connection is ever acquired; the store re-checks anything
// that depends on stored state inside its own transaction.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/drink-tracker/internal/apperror"
	"github.com/sakif/drink-tracker/internal/auth"
	"github.com/sakif/drink-tracker/internal/model"
	"github.com/sakif/drink-tracker/internal/repository"
)

// DefaultTokenTTL is how long a login stays valid: one week.
const DefaultTokenTTL = 7 * 24 * time.Hour

// AuthService registers users and logs them in.
type AuthService struct {
	users     repository.UserRepository
	sessions  repository.LoginSessionRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	ttl       time.Duration
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.LoginSessionRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	ttl time.Duration,
	logger *slog.Logger,
) *AuthService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		passwords: passwords,
		ttl:       ttl,
		logger:    logger,
	}
}

// Register validates in, hashes the password and creates the account.
// Duplicate usernames and emails come back from the store as Conflict.
func (s *AuthService) Register(ctx context.Context, in model.NewUser) (int64, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return 0, apperror.ValidationFailed("username", "Missing username or password")
	}
	if strings.TrimSpace(in.Birthdate) == "" || strings.TrimSpace(in.Gender) == "" {
		return 0, apperror.ValidationFailed("birthdate", "Missing fields")
	}
	birthdate, err := time.Parse(time.DateOnly, strings.TrimSpace(in.Birthdate))
	if err != nil {
		return 0, apperror.ValidationFailed("birthdate", "Birthdate must be a date (YYYY-MM-DD)")
	}
	if len(in.Password) > 72 {
		return 0, apperror.ValidationFailed("password", "Password must be 72 bytes or fewer")
	}

	var email *string
	if in.Email != nil {
		if e := strings.TrimSpace(*in.Email); e != "" {
			email = &e
		}
	}

	hashed, err := s.passwords.Hash(in.Password)
	if err != nil {
		return 0, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	id, err := s.users.CreateUser(ctx, &model.User{
		Username:       username,
		Email:          email,
		Birthdate:      birthdate.Format(time.DateOnly),
		Gender:         strings.TrimSpace(in.Gender),
		HashedPassword: hashed,
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("user registered",
		slog.Int64("userID", id),
		slog.String("username", username),
	)
	return id, nil
}

// Login checks the password and opens a new login session. Every call
// issues a fresh token; earlier tokens for the same user stay valid.
//
// Unknown usernames and wrong passwords produce the same error so the
// response does not reveal which accounts exist.
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperror.ValidationFailed("username", "Missing username or password")
	}

	creds, err := s.users.GetUserCredentials(ctx, username)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthorized(apperror.BadCredentials)
	}
	if err != nil {
		return nil, err
	}

	if err := s.passwords.Verify(creds.HashedPassword, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("stored password hash is unusable",
				slog.Int64("userID", creds.UserID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.Unauthorized(apperror.BadCredentials)
	}

	issued, err := s.tokens.Issue(creds.UserID, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %d: %w", creds.UserID, err)
	}

	expiry := model.NewTimestamp(issued.Expiry)
	err = s.sessions.CreateLoginSession(ctx, model.LoginSession{
		TokenID: issued.TokenID,
		UserID:  creds.UserID,
		Expiry:  expiry,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", slog.Int64("userID", creds.UserID))
	return &model.LoginResult{
		UserID:     creds.UserID,
		LoginToken: issued.Token,
		Expiry:     expiry,
	}, nil
}
