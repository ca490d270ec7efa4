package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/drink-tracker/internal/apperror"
)

// uniqueRule maps one uniqueness constraint to the message users see.
// Postgres reports the constraint (or index) name; SQLite reports the
// offending columns as "table.col, table.col".
type uniqueRule struct {
	constraint string
	columns    string
	message    string
}

var uniqueRules = []uniqueRule{
	{
		constraint: "users_ak_username",
		columns:    "users.username",
		message:    "That username is already taken. Please choose a different username.",
	},
	{
		constraint: "users_ak_email",
		columns:    "users.email",
		message:    "That email is already taken. Please choose a different email.",
	},
	{
		constraint: "drinks_ak_name_user",
		columns:    "drinks.created_user_id, drinks.name",
		message:    "This user already has a drink of this name",
	},
	{
		constraint: "ingredients_ak_name_user",
		columns:    "ingredients.created_user_id, ingredients.name",
		message:    "This user already has an ingredient of this name",
	},
	{
		constraint: "tags_ak_name_type",
		columns:    "tags.name, tags.type",
		message:    "A tag of this name and type already exists",
	},
}

// classify converts known uniqueness violations into apperror.Conflict and
// wraps everything else with op for the logs. Unknown violations stay
// internal errors.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if msg, ok := uniqueViolation(err); ok {
		return apperror.Conflict(msg)
	}
	return fmt.Errorf("sqlstore: %s: %w", op, err)
}

func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Name() != "unique_violation" {
			return "", false
		}
		for _, r := range uniqueRules {
			if pqErr.Constraint == r.constraint {
				return r.message, true
			}
		}
		return "", false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return "", false
		}
		text := liteErr.Error()
		for _, r := range uniqueRules {
			if strings.HasSuffix(strings.TrimSpace(stripCode(text)), r.columns) {
				return r.message, true
			}
		}
	}
	return "", false
}

// stripCode drops the " (2067)" suffix modernc appends to messages.
func stripCode(msg string) string {
	if i := strings.LastIndex(msg, " ("); i >= 0 && strings.HasSuffix(msg, ")") {
		return msg[:i]
	}
	return msg
}

// notFoundIfNoRows turns sql.ErrNoRows into a NotFound for resource/id.
func notFoundIfNoRows(err error, resource string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound(resource, fmt.Sprint(id))
	}
	return err
}

// isPrimaryKeyViolation reports a duplicate composite key, such as the same
// ingredient twice in one recipe.
func isPrimaryKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "unique_violation" && strings.HasSuffix(pqErr.Constraint, "_pkey")
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
