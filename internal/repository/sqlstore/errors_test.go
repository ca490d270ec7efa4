package sqlstore

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/sakif/drink-tracker/internal/apperror"
)

func TestClassifyPostgresConstraints(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "username",
			err:        &pq.Error{Code: "23505", Constraint: "users_ak_username"},
			wantStatus: 409,
			wantMsg:    "That username is already taken. Please choose a different username.",
		},
		{
			name:       "drink name per user",
			err:        &pq.Error{Code: "23505", Constraint: "drinks_ak_name_user"},
			wantStatus: 409,
			wantMsg:    "This user already has a drink of this name",
		},
		{
			name:       "unknown constraint stays internal",
			err:        &pq.Error{Code: "23505", Constraint: "mystery_idx"},
			wantStatus: 500,
			wantMsg:    apperror.GenericMessage,
		},
		{
			name:       "other error class",
			err:        &pq.Error{Code: "23503", Constraint: "users_ak_username"},
			wantStatus: 500,
			wantMsg:    apperror.GenericMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := apperror.Classify(classify("op", tt.err))
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestClassifyWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("connection reset")
	err := classify("listing drinks", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "sqlstore: listing drinks: connection reset", err.Error())
	assert.NoError(t, classify("noop", nil))
}

func TestIsPrimaryKeyViolation(t *testing.T) {
	assert.True(t, isPrimaryKeyViolation(&pq.Error{Code: "23505", Constraint: "drink_ingredients_pkey"}))
	assert.False(t, isPrimaryKeyViolation(&pq.Error{Code: "23505", Constraint: "drinks_ak_name_user"}))
	assert.False(t, isPrimaryKeyViolation(errors.New("nope")))
}

func TestNotFoundIfNoRows(t *testing.T) {
	err := notFoundIfNoRows(sql.ErrNoRows, "drink", 12)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	other := errors.New("x")
	assert.Same(t, other, notFoundIfNoRows(other, "drink", 12))
}

func TestStripCode(t *testing.T) {
	assert.Equal(t, "UNIQUE constraint failed: users.email", stripCode("UNIQUE constraint failed: users.email (2067)"))
	assert.Equal(t, "no code here", stripCode("no code here"))
}
