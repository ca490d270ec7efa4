package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/drink-tracker/internal/apperror"
	"github.com/sakif/drink-tracker/internal/assemble"
	"github.com/sakif/drink-tracker/internal/model"
	"github.com/sakif/drink-tracker/internal/query"
	"github.com/sakif/drink-tracker/internal/repository"
)

var _ repository.IngredientRepository = (*Store)(nil)

// ingredientRow is one ingredient x tag row of the listing join.
type ingredientRow struct {
	ID            int64           `db:"ingredient_id"`
	CreatedUserID int64           `db:"created_user_id"`
	CreateTime    model.Timestamp `db:"create_time"`
	Name          string          `db:"name"`
	ABV           assemble.Number `db:"abv"`
	SugarPercent  assemble.Number `db:"sugar_percent"`
	Description   sql.NullString  `db:"description"`
	tagColumns
}

func (r ingredientRow) shell() model.Ingredient {
	return model.Ingredient{
		ID:            r.ID,
		CreatedUserID: r.CreatedUserID,
		CreateTime:    r.CreateTime,
		Name:          r.Name,
		ABV:           r.ABV.Float64(),
		SugarPercent:  r.SugarPercent.Float64(),
		Description:   nullableString(r.Description),
		Tags:          []model.Tag{},
	}
}

const ingredientListSQL = `
SELECT i.ingredient_id, i.created_user_id, i.create_time, i.name, i.abv, i.sugar_percent, i.description,
       t.tag_id, t.name AS tag_name, t.type AS tag_type
FROM ingredients i
LEFT JOIN ingredient_tags it ON it.ingredient_id = i.ingredient_id
LEFT JOIN tags t ON t.tag_id = it.tag_id
WHERE i.delete_time IS NULL AND %s
ORDER BY i.ingredient_id, t.tag_id`

// ListIngredients returns the live ingredients f.Viewer may see that match
// every supplied filter, each with its full tag set.
func (s *Store) ListIngredients(ctx context.Context, f repository.IngredientFilter) ([]model.Ingredient, error) {
	pred, err := query.New().
		Visibility("i.created_user_id", f.Viewer).
		Equal("i.name", f.Name).
		AtLeast("i.abv", f.MinABV).
		AtMost("i.abv", f.MaxABV).
		AtLeast("i.sugar_percent", f.MinSugar).
		AtMost("i.sugar_percent", f.MaxSugar).
		After("i.create_time", f.MinDate).
		Before("i.create_time", f.MaxDate).
		Members("i.ingredient_id", query.IngredientTags, f.Tags).
		Build()
	if err != nil {
		return nil, err
	}

	var rows []ingredientRow
	err = s.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		return sqlx.SelectContext(ctx, conn, &rows, conn.Rebind(fmt.Sprintf(ingredientListSQL, pred.SQL)), pred.Args...)
	})
	if err != nil {
		return nil, classify("listing ingredients", err)
	}

	return foldIngredients(rows), nil
}

func foldIngredients(rows []ingredientRow) []model.Ingredient {
	fold := assemble.NewFold[int64, model.Ingredient]()
	for _, r := range rows {
		item, _ := fold.Upsert(r.ID, r.shell)
		addTag(fold, r.ID, item, r.tagColumns)
	}
	return fold.Values()
}

// CreateIngredient inserts the ingredient and its tag links atomically.
func (s *Store) CreateIngredient(ctx context.Context, owner int64, in model.NewIngredient) (int64, error) {
	if in.ABV == nil || in.SugarPercent == nil {
		return 0, apperror.ValidationFailed("ABV", "Missing fields")
	}

	var id int64
	err := s.pool.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, tx.Rebind(
			`INSERT INTO ingredients (created_user_id, create_time, name, abv, sugar_percent, description)
			 VALUES (?, ?, ?, ?, ?, ?)
			 RETURNING ingredient_id`),
			owner, model.Now(), in.Name, *in.ABV, *in.SugarPercent, in.Description,
		).Scan(&id)
		if err != nil {
			return classify("inserting ingredient", err)
		}
		return insertTagRefs(ctx, tx, query.IngredientTags, id, in.Tags)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("ingredient created", slog.Int64("ingredientID", id), slog.Int64("owner", owner))
	return id, nil
}

// DeleteIngredient soft-deletes an ingredient the owner controls. Drinks
// already made from it keep their recipe.
func (s *Store) DeleteIngredient(ctx context.Context, id, owner int64) error {
	return s.softDelete(ctx, taggables[model.IngredientKind], id, owner, "ingredient")
}

func (s *Store) softDelete(ctx context.Context, t taggableTable, id, owner int64, resource string) error {
	return s.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		res, err := conn.ExecContext(ctx, conn.Rebind(fmt.Sprintf(
			`UPDATE %s SET delete_time = ? WHERE %s = ? AND created_user_id = ? AND delete_time IS NULL`,
			t.table, t.idColumn)),
			model.Now(), id, owner)
		if err != nil {
			return classify("deleting "+resource, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperror.NotFound(resource, fmt.Sprint(id))
		}
		return nil
	})
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
