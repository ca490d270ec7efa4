// Package query assembles parameterized WHERE predicates from optional
// search filters.
//
// A Builder accumulates (fragment, args) pairs. Each fragment uses ? for its
// own args only, so placeholders and values can never drift apart. Build
// joins the fragments with AND in call order and expands slice arguments
// with sqlx.In; the caller rebinds the result for its dialect:
//
//	pred, err := query.New().
//		Visibility("i.created_user_id", viewer).
//		AtLeast("i.abv", f.MinABV).
//		Members("i.ingredient_id", query.IngredientTags, f.Tags).
//		Build()
//	rows, err := conn.QueryxContext(ctx, db.Rebind(base+" WHERE "+pred.SQL), pred.Args...)
package query

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/drink-tracker/internal/model"
)

// Predicate is the final WHERE clause and its positional values.
type Predicate struct {
	SQL  string
	Args []any
}

// Viewer is the identity a read runs as. A nil UserID is anonymous.
type Viewer struct {
	UserID        *int64
	IncludePublic bool
}

// Anonymous is the viewer for requests without a token.
func Anonymous() Viewer { return Viewer{} }

// AsUser returns the viewer for an authenticated caller.
func AsUser(id int64, includePublic bool) Viewer {
	return Viewer{UserID: &id, IncludePublic: includePublic}
}

// Association describes a many-to-many link table.
type Association struct {
	Table        string
	ParentColumn string
	MemberColumn string
}

var (
	IngredientTags   = Association{Table: "ingredient_tags", ParentColumn: "ingredient_id", MemberColumn: "tag_id"}
	DrinkTags        = Association{Table: "drink_tags", ParentColumn: "drink_id", MemberColumn: "tag_id"}
	DrinkIngredients = Association{Table: "drink_ingredients", ParentColumn: "drink_id", MemberColumn: "ingredient_id"}
)

// SetFilter is one include/exclude axis over an Association.
//
// With RequireAll false an entity matches if it has any Include member; with
// RequireAll true it must have every one. Any Exclude member disqualifies it
// regardless of Include.
type SetFilter struct {
	Include    []int64
	Exclude    []int64
	RequireAll bool
}

// Empty reports whether the filter constrains nothing.
func (f SetFilter) Empty() bool {
	return len(f.Include) == 0 && len(f.Exclude) == 0
}

var errUnsupportedValue = errors.New("query: unsupported filter value")

type clause struct {
	sql  string
	args []any
}

// Builder is not safe for concurrent use; build one per request.
type Builder struct {
	clauses []clause
	err     error
}

func New() *Builder {
	return &Builder{}
}

// Where appends a raw fragment. Its ? count must match len(args); slices
// count as one ? and are expanded by Build.
func (b *Builder) Where(fragment string, args ...any) *Builder {
	if strings.Count(fragment, "?") != len(args) && b.err == nil {
		b.err = fmt.Errorf("query: fragment %q has %d placeholders for %d args",
			fragment, strings.Count(fragment, "?"), len(args))
	}
	b.clauses = append(b.clauses, clause{sql: fragment, args: args})
	return b
}

// Visibility restricts column (an owner id) to what v may see. It is the one
// clause every read carries.
func (b *Builder) Visibility(column string, v Viewer) *Builder {
	switch {
	case v.UserID == nil:
		return b.Where(column+" = ?", model.PublicUserID)
	case v.IncludePublic:
		return b.Where(column+" IN (?, ?)", model.PublicUserID, *v.UserID)
	default:
		return b.Where(column+" = ?", *v.UserID)
	}
}

// Equal adds column = value when value is non-nil.
func (b *Builder) Equal(column string, value *string) *Builder {
	if value == nil {
		return b
	}
	return b.Where(column+" = ?", *value)
}

// AtLeast adds column >= value when value is a non-nil *float64, *int64 or
// *time.Time. A nil pointer means the caller did not ask for the filter.
func (b *Builder) AtLeast(column string, value any) *Builder {
	return b.compare(column, ">=", value)
}

// AtMost is the upper-bound counterpart of AtLeast.
func (b *Builder) AtMost(column string, value any) *Builder {
	return b.compare(column, "<=", value)
}

// After and Before bound a timestamp column inclusively.
func (b *Builder) After(column string, t *time.Time) *Builder {
	return b.compare(column, ">=", t)
}

func (b *Builder) Before(column string, t *time.Time) *Builder {
	return b.compare(column, "<=", t)
}

func (b *Builder) compare(column, op string, value any) *Builder {
	var arg any
	switch v := value.(type) {
	case nil:
		return b
	case *float64:
		if v == nil {
			return b
		}
		arg = *v
	case *int64:
		if v == nil {
			return b
		}
		arg = *v
	case *time.Time:
		if v == nil {
			return b
		}
		arg = v.UTC().Truncate(time.Second)
	default:
		if b.err == nil {
			b.err = fmt.Errorf("%w: %s %T", errUnsupportedValue, column, value)
		}
		return b
	}
	return b.Where(fmt.Sprintf("%s %s ?", column, op), arg)
}

// Members applies f to the entity whose id is parentRef, through assoc.
func (b *Builder) Members(parentRef string, assoc Association, f SetFilter) *Builder {
	include := dedupe(f.Include)
	exclude := dedupe(f.Exclude)

	sub := fmt.Sprintf("FROM %s a WHERE a.%s = %s AND a.%s IN (?)",
		assoc.Table, assoc.ParentColumn, parentRef, assoc.MemberColumn)

	if len(include) > 0 {
		if f.RequireAll {
			b.Where(fmt.Sprintf("(SELECT COUNT(DISTINCT a.%s) %s) = ?", assoc.MemberColumn, sub),
				include, len(include))
		} else {
			b.Where("EXISTS (SELECT 1 "+sub+")", include)
		}
	}
	if len(exclude) > 0 {
		b.Where("NOT EXISTS (SELECT 1 "+sub+")", exclude)
	}
	return b
}

// Build joins every clause with AND. With no clauses the predicate is 1=1.
func (b *Builder) Build() (Predicate, error) {
	if b.err != nil {
		return Predicate{}, b.err
	}
	if len(b.clauses) == 0 {
		return Predicate{SQL: "1=1"}, nil
	}

	parts := make([]string, 0, len(b.clauses))
	var args []any
	for _, c := range b.clauses {
		parts = append(parts, c.sql)
		args = append(args, c.args...)
	}

	sql, args, err := sqlx.In(strings.Join(parts, " AND "), args...)
	if err != nil {
		return Predicate{}, fmt.Errorf("query: expanding arguments: %w", err)
	}
	return Predicate{SQL: sql, Args: args}, nil
}

func dedupe(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
