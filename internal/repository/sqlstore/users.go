package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/drink-tracker/internal/model"
	"github.com/sakif/drink-tracker/internal/repository"
)

var (
	_ repository.UserRepository         = (*Store)(nil)
	_ repository.LoginSessionRepository = (*Store)(nil)
)

// CreateUser inserts user and returns its new id. A taken username or email
// comes back as apperror.ErrConflict with a readable message.
func (s *Store) CreateUser(ctx context.Context, user *model.User) (int64, error) {
	if user.CreateTime.IsZero() {
		user.CreateTime = model.Now()
	}

	var id int64
	err := s.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		return conn.QueryRowxContext(ctx, conn.Rebind(
			`INSERT INTO users (username, email, hashed_password, birthdate, gender, create_time)
			 VALUES (?, ?, ?, ?, ?, ?)
			 RETURNING user_id`),
			user.Username, user.Email, user.HashedPassword, user.Birthdate, user.Gender, user.CreateTime,
		).Scan(&id)
	})
	if err != nil {
		return 0, classify(fmt.Sprintf("inserting user %q", user.Username), err)
	}

	user.ID = id
	return id, nil
}

// GetUserCredentials looks up the password hash for a login attempt. The
// reserved public owner never matches.
func (s *Store) GetUserCredentials(ctx context.Context, username string) (*model.Credentials, error) {
	var c model.Credentials
	err := s.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		return sqlx.GetContext(ctx, conn, &c, conn.Rebind(
			`SELECT user_id, hashed_password FROM users WHERE username = ? AND user_id <> ?`),
			username, model.PublicUserID)
	})
	if err != nil {
		return nil, classify("getting credentials", notFoundIfNoRows(err, "user", username))
	}
	return &c, nil
}

func (s *Store) CreateLoginSession(ctx context.Context, session model.LoginSession) error {
	err := s.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		_, err := conn.ExecContext(ctx, conn.Rebind(
			`INSERT INTO login_sessions (token_id, user_id, expiry, create_time) VALUES (?, ?, ?, ?)`),
			session.TokenID, session.UserID, session.Expiry, model.Now())
		return err
	})
	return classify("inserting login session", err)
}

// GetLoginSession returns the stored session for tokenID or
// apperror.ErrNotFound. Expiry is left to the caller.
func (s *Store) GetLoginSession(ctx context.Context, tokenID string) (*model.LoginSession, error) {
	var ls model.LoginSession
	err := s.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		return sqlx.GetContext(ctx, conn, &ls, conn.Rebind(
			`SELECT token_id, user_id, expiry FROM login_sessions WHERE token_id = ?`), tokenID)
	})
	if err != nil {
		return nil, classify("getting login session", notFoundIfNoRows(err, "login session", tokenID))
	}
	return &ls, nil
}

// PurgeLoginSessions deletes sessions that expired before the cutoff.
func (s *Store) PurgeLoginSessions(ctx context.Context, expiredBefore time.Time) (int64, error) {
	var n int64
	err := s.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		res, err := conn.ExecContext(ctx, conn.Rebind(
			`DELETE FROM login_sessions WHERE expiry < ?`), model.NewTimestamp(expiredBefore))
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, classify("purging login sessions", err)
	}
	return n, nil
}
