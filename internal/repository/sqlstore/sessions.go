package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/drink-tracker/internal/apperror"
	"github.com/sakif/drink-tracker/internal/assemble"
	"github.com/sakif/drink-tracker/internal/model"
	"github.com/sakif/drink-tracker/internal/query"
	"github.com/sakif/drink-tracker/internal/repository"
)

var _ repository.SessionRepository = (*Store)(nil)

// errSessionNotOwned is what a caller sees when adding to a session that is
// missing or belongs to someone else.
var errSessionNotOwned = apperror.ValidationFailed("session_id", "No session of that ID exists under this user")

func (s *Store) CreateSession(ctx context.Context, owner int64) (int64, error) {
	var id int64
	err := s.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		return conn.QueryRowxContext(ctx, conn.Rebind(
			`INSERT INTO sessions (created_user_id, create_time) VALUES (?, ?) RETURNING session_id`),
			owner, model.Now(),
		).Scan(&id)
	})
	if err != nil {
		return 0, classify("inserting session", err)
	}
	return id, nil
}

type sessionOverviewRow struct {
	ID              int64               `db:"session_id"`
	CreatedUserID   int64               `db:"created_user_id"`
	CreateTime      model.Timestamp     `db:"create_time"`
	NDrinks         assemble.Number     `db:"n_drinks"`
	NStandards      assemble.Number     `db:"n_standards"`
	SugarG          assemble.Number     `db:"sugar_g"`
	StartTime       model.NullTimestamp `db:"start_time"`
	EndTime         model.NullTimestamp `db:"end_time"`
	DurationMinutes assemble.Number     `db:"duration_minutes"`
}

// ListSessions returns the owner's sessions with their derived totals.
func (s *Store) ListSessions(ctx context.Context, f repository.SessionFilter) ([]model.SessionOverview, error) {
	pred, err := query.New().
		Where("o.created_user_id = ?", f.OwnerID).
		AtLeast("o.n_standards", f.MinStandards).
		AtMost("o.n_standards", f.MaxStandards).
		AtLeast("o.sugar_g", f.MinSugar).
		AtMost("o.sugar_g", f.MaxSugar).
		AtLeast("o.duration_minutes", f.MinDuration).
		AtMost("o.duration_minutes", f.MaxDuration).
		After("o.create_time", f.MinDate).
		Before("o.create_time", f.MaxDate).
		Build()
	if err != nil {
		return nil, err
	}

	var rows []sessionOverviewRow
	err = s.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		return sqlx.SelectContext(ctx, conn, &rows, conn.Rebind(
			`SELECT o.session_id, o.created_user_id, o.create_time, o.n_drinks, o.n_standards, o.sugar_g,
			        o.start_time, o.end_time, o.duration_minutes
			 FROM sessions_overview o
			 WHERE `+pred.SQL+`
			 ORDER BY o.create_time DESC, o.session_id DESC`), pred.Args...)
	})
	if err != nil {
		return nil, classify("listing sessions", err)
	}

	out := make([]model.SessionOverview, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.SessionOverview{
			ID:              r.ID,
			CreatedUserID:   r.CreatedUserID,
			CreateTime:      r.CreateTime,
			NDrinks:         int64(r.NDrinks),
			NStandards:      r.NStandards.Float64(),
			SugarG:          r.SugarG.Float64(),
			StartTime:       r.StartTime,
			EndTime:         r.EndTime,
			DurationMinutes: r.DurationMinutes.Float64(),
		})
	}
	return out, nil
}

type sessionRow struct {
	ID            int64           `db:"session_id"`
	CreatedUserID int64           `db:"created_user_id"`
	CreateTime    model.Timestamp `db:"create_time"`

	PairingID  assemble.NullInt    `db:"session_drink_id"`
	Quantity   assemble.NullInt    `db:"quantity"`
	StartTime  model.NullTimestamp `db:"start_time"`
	EndTime    model.NullTimestamp `db:"end_time"`
	DrinkID    assemble.NullInt    `db:"drink_id"`
	DrinkName  sql.NullString      `db:"drink_name"`
	DrinkOwner assemble.NullInt    `db:"drink_owner"`
	DrinkTime  model.NullTimestamp `db:"drink_create_time"`
	NIngr      assemble.NullNumber `db:"n_ingredients"`
	NStandards assemble.NullNumber `db:"n_standards"`
	SugarG     assemble.NullNumber `db:"sugar_g"`
}

// GetSession returns one of the owner's sessions with its entries ordered
// by start time.
func (s *Store) GetSession(ctx context.Context, id, owner int64) (*model.DrinkingSession, error) {
	var rows []sessionRow
	err := s.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		return sqlx.SelectContext(ctx, conn, &rows, conn.Rebind(
			`SELECT s.session_id, s.created_user_id, s.create_time,
			        sd.session_drink_id, sd.quantity, sd.start_time, sd.end_time,
			        t.drink_id, t.name AS drink_name, t.created_user_id AS drink_owner,
			        t.create_time AS drink_create_time, t.n_ingredients, t.n_standards, t.sugar_g
			 FROM sessions s
			 LEFT JOIN session_drinks sd ON sd.session_id = s.session_id
			 LEFT JOIN drink_totals t ON t.drink_id = sd.drink_id
			 WHERE s.session_id = ? AND s.created_user_id = ?
			 ORDER BY sd.start_time, sd.session_drink_id`), id, owner)
	})
	if err != nil {
		return nil, classify("getting session", err)
	}

	fold := assemble.NewFold[int64, model.DrinkingSession]()
	for _, r := range rows {
		session, _ := fold.Upsert(r.ID, func() model.DrinkingSession {
			return model.DrinkingSession{
				ID:            r.ID,
				CreatedUserID: r.CreatedUserID,
				CreateTime:    r.CreateTime,
				Drinks:        []model.SessionDrink{},
			}
		})
		if !r.PairingID.Valid || !fold.Child(r.ID, "drink", r.PairingID.Int64) {
			continue
		}
		session.Drinks = append(session.Drinks, model.SessionDrink{
			ID: r.PairingID.Int64,
			Drink: model.DrinkOverview{
				ID:            r.DrinkID.Int64,
				Name:          r.DrinkName.String,
				CreatedUserID: r.DrinkOwner.Int64,
				CreateTime:    r.DrinkTime.Timestamp,
				NIngredients:  int64(r.NIngr.Float64),
				NStandards:    r.NStandards.Float64,
				SugarG:        r.SugarG.Float64,
			},
			Quantity:  r.Quantity.Int64,
			StartTime: r.StartTime.Timestamp,
			EndTime:   r.EndTime,
		})
	}

	sessions := fold.Values()
	if len(sessions) == 0 {
		return nil, apperror.NotFound("session", fmt.Sprint(id))
	}
	return &sessions[0], nil
}

// AddDrinkToSession records a drink in one of the owner's sessions. The
// ownership check, the drink visibility check and the insert share one
// transaction.
func (s *Store) AddDrinkToSession(ctx context.Context, owner, sessionID int64, in model.NewSessionDrink) (int64, error) {
	if in.Quantity == nil || in.StartTime == nil {
		return 0, apperror.ValidationFailed("drink_id", "Missing fields")
	}

	var id int64
	err := s.pool.WithTx(ctx, func(tx *sqlx.Tx) error {
		var one int
		err := sqlx.GetContext(ctx, tx, &one, tx.Rebind(
			`SELECT 1 FROM sessions WHERE session_id = ? AND created_user_id = ?`), sessionID, owner)
		if errors.Is(err, sql.ErrNoRows) {
			return errSessionNotOwned
		}
		if err != nil {
			return classify("checking session", err)
		}

		err = sqlx.GetContext(ctx, tx, &one, tx.Rebind(
			`SELECT 1 FROM drinks WHERE drink_id = ? AND delete_time IS NULL AND created_user_id IN (?, ?)`),
			in.DrinkID, model.PublicUserID, owner)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.ValidationFailed("drink_id", fmt.Sprintf("No drink of ID %d exists", in.DrinkID))
		}
		if err != nil {
			return classify("checking drink", err)
		}

		err = tx.QueryRowxContext(ctx, tx.Rebind(
			`INSERT INTO session_drinks (session_id, drink_id, quantity, start_time, end_time)
			 VALUES (?, ?, ?, ?, ?)
			 RETURNING session_drink_id`),
			sessionID, in.DrinkID, *in.Quantity, *in.StartTime, in.EndTime,
		).Scan(&id)
		return classify("adding drink to session", err)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// RemoveDrinkFromSession deletes one entry from one of the owner's sessions.
func (s *Store) RemoveDrinkFromSession(ctx context.Context, owner, sessionID, pairingID int64) error {
	return s.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		res, err := conn.ExecContext(ctx, conn.Rebind(
			`DELETE FROM session_drinks
			 WHERE session_drink_id = ? AND session_id IN (
			     SELECT session_id FROM sessions WHERE session_id = ? AND created_user_id = ?)`),
			pairingID, sessionID, owner)
		if err != nil {
			return classify("removing session drink", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound("session drink", fmt.Sprint(pairingID))
		}
		return nil
	})
}

// DeleteSession removes the session and its entries together.
func (s *Store) DeleteSession(ctx context.Context, owner, id int64) error {
	return s.pool.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM session_drinks
			 WHERE session_id IN (SELECT session_id FROM sessions WHERE session_id = ? AND created_user_id = ?)`),
			id, owner)
		if err != nil {
			return classify("deleting session drinks", err)
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM sessions WHERE session_id = ? AND created_user_id = ?`), id, owner)
		if err != nil {
			return classify("deleting session", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound("session", fmt.Sprint(id))
		}
		return nil
	})
}
