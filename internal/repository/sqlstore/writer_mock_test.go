package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/drink-tracker/internal/apperror"
	"github.com/sakif/drink-tracker/internal/model"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock"), SQLite, 1, discardLogger()), mock
}

func twoLineDrink() model.NewDrink {
	return model.NewDrink{
		Name:        "Negroni",
		Ingredients: []model.NewDrinkLine{line(10, 30), line(11, 30)},
	}
}

func TestCreateDrinkRollsBackOnDriverFailure(t *testing.T) {
	s, mock := newMockStore(t)
	diskFull := errors.New("disk I/O error")

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO drinks`).
		WillReturnRows(sqlmock.NewRows([]string{"drink_id"}).AddRow(7))
	mock.ExpectQuery(`SELECT 1 FROM ingredients`).
		WithArgs(int64(10), model.PublicUserID, int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO drink_ingredients`).
		WithArgs(int64(7), int64(10), 0, 30.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT 1 FROM ingredients`).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO drink_ingredients`).
		WillReturnError(diskFull)
	mock.ExpectRollback()

	_, err := s.CreateDrink(context.Background(), 42, twoLineDrink())
	require.Error(t, err)
	assert.ErrorIs(t, err, diskFull)
	assert.True(t, apperror.IsInternal(err))

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 0, s.Pool().Stats().InUse)
}

func TestCreateDrinkRollsBackOnUnknownIngredient(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO drinks`).
		WillReturnRows(sqlmock.NewRows([]string{"drink_id"}).AddRow(7))
	mock.ExpectQuery(`SELECT 1 FROM ingredients`).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectRollback()

	_, err := s.CreateDrink(context.Background(), 42, twoLineDrink())
	require.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "No ingredient of ID 10 exists", err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDrinkReportsCommitFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO drinks`).
		WillReturnRows(sqlmock.NewRows([]string{"drink_id"}).AddRow(7))
	for range 2 {
		mock.ExpectQuery(`SELECT 1 FROM ingredients`).
			WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
		mock.ExpectExec(`INSERT INTO drink_ingredients`).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	_, err := s.CreateDrink(context.Background(), 42, twoLineDrink())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "committing transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidationHappensBeforeAcquire(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.CreateDrink(context.Background(), 42, model.NewDrink{Name: "Empty"})
	require.ErrorIs(t, err, apperror.ErrValidation)

	_, err = s.CreateIngredient(context.Background(), 42, model.NewIngredient{Name: "Half"})
	require.ErrorIs(t, err, apperror.ErrValidation)

	assert.NoError(t, mock.ExpectationsWereMet(), "no statement was sent")
}
