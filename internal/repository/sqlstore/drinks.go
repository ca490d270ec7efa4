package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/drink-tracker/internal/apperror"
	"github.com/sakif/drink-tracker/internal/assemble"
	"github.com/sakif/drink-tracker/internal/model"
	"github.com/sakif/drink-tracker/internal/query"
	"github.com/sakif/drink-tracker/internal/repository"
)

var _ repository.DrinkRepository = (*Store)(nil)

type overviewRow struct {
	ID            int64           `db:"drink_id"`
	Name          string          `db:"name"`
	CreatedUserID int64           `db:"created_user_id"`
	CreateTime    model.Timestamp `db:"create_time"`
	NIngredients  assemble.Number `db:"n_ingredients"`
	NStandards    assemble.Number `db:"n_standards"`
	SugarG        assemble.Number `db:"sugar_g"`
}

func (r overviewRow) overview() model.DrinkOverview {
	return model.DrinkOverview{
		ID:            r.ID,
		Name:          r.Name,
		CreatedUserID: r.CreatedUserID,
		CreateTime:    r.CreateTime,
		NIngredients:  int64(r.NIngredients),
		NStandards:    r.NStandards.Float64(),
		SugarG:        r.SugarG.Float64(),
	}
}

// ListDrinks returns drink overviews matching every supplied filter.
func (s *Store) ListDrinks(ctx context.Context, f repository.DrinkFilter) ([]model.DrinkOverview, error) {
	pred, err := query.New().
		Visibility("o.created_user_id", f.Viewer).
		Equal("o.name", f.Name).
		AtLeast("o.n_standards", f.MinStandards).
		AtMost("o.n_standards", f.MaxStandards).
		AtLeast("o.sugar_g", f.MinSugar).
		AtMost("o.sugar_g", f.MaxSugar).
		AtLeast("o.n_ingredients", f.MinIngredients).
		AtMost("o.n_ingredients", f.MaxIngredients).
		After("o.create_time", f.MinDate).
		Before("o.create_time", f.MaxDate).
		Members("o.drink_id", query.DrinkIngredients, f.Ingredients).
		Members("o.drink_id", query.DrinkTags, f.Tags).
		Build()
	if err != nil {
		return nil, err
	}

	var rows []overviewRow
	err = s.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		return sqlx.SelectContext(ctx, conn, &rows, conn.Rebind(
			`SELECT o.drink_id, o.name, o.created_user_id, o.create_time, o.n_ingredients, o.n_standards, o.sugar_g
			 FROM drinks_overview o
			 WHERE `+pred.SQL+`
			 ORDER BY o.drink_id`), pred.Args...)
	})
	if err != nil {
		return nil, classify("listing drinks", err)
	}

	drinks := make([]model.DrinkOverview, 0, len(rows))
	for _, r := range rows {
		drinks = append(drinks, r.overview())
	}
	return drinks, nil
}

// drinkRow is one row of the drink detail join. Joining recipe lines,
// their tags and the drink's own tags multiplies rows, so every child
// collection is de-duplicated while folding.
type drinkRow struct {
	ID            int64           `db:"drink_id"`
	CreatedUserID int64           `db:"created_user_id"`
	CreateTime    model.Timestamp `db:"create_time"`
	Name          string          `db:"name"`
	Description   sql.NullString  `db:"description"`

	Volume                assemble.NullNumber `db:"volume"`
	IngredientID          assemble.NullInt    `db:"ingredient_id"`
	IngredientOwner       assemble.NullInt    `db:"ingredient_owner"`
	IngredientCreateTime  model.NullTimestamp `db:"ingredient_create_time"`
	IngredientName        sql.NullString      `db:"ingredient_name"`
	IngredientABV         assemble.NullNumber `db:"abv"`
	IngredientSugar       assemble.NullNumber `db:"sugar_percent"`
	IngredientDescription sql.NullString      `db:"ingredient_description"`

	IngredientTagID   assemble.NullInt `db:"ingredient_tag_id"`
	IngredientTagName sql.NullString   `db:"ingredient_tag_name"`
	IngredientTagType sql.NullString   `db:"ingredient_tag_type"`

	tagColumns
}

func (r drinkRow) shell() model.Drink {
	return model.Drink{
		ID:            r.ID,
		CreatedUserID: r.CreatedUserID,
		CreateTime:    r.CreateTime,
		Name:          r.Name,
		Description:   nullableString(r.Description),
		Ingredients:   []model.DrinkIngredient{},
		Tags:          []model.Tag{},
	}
}

func (r drinkRow) line() model.DrinkIngredient {
	return model.DrinkIngredient{
		Ingredient: model.Ingredient{
			ID:            r.IngredientID.Int64,
			CreatedUserID: r.IngredientOwner.Int64,
			CreateTime:    r.IngredientCreateTime.Timestamp,
			Name:          r.IngredientName.String,
			ABV:           r.IngredientABV.Float64,
			SugarPercent:  r.IngredientSugar.Float64,
			Description:   nullableString(r.IngredientDescription),
			Tags:          []model.Tag{},
		},
		Volume: r.Volume.Float64,
	}
}

const drinkDetailSQL = `
SELECT d.drink_id, d.created_user_id, d.create_time, d.name, d.description,
       di.volume,
       i.ingredient_id, i.created_user_id AS ingredient_owner, i.create_time AS ingredient_create_time,
       i.name AS ingredient_name, i.abv, i.sugar_percent, i.description AS ingredient_description,
       it.tag_id AS ingredient_tag_id, itt.name AS ingredient_tag_name, itt.type AS ingredient_tag_type,
       dt.tag_id, dtt.name AS tag_name, dtt.type AS tag_type
FROM drinks d
LEFT JOIN drink_ingredients di ON di.drink_id = d.drink_id
LEFT JOIN ingredients i ON i.ingredient_id = di.ingredient_id
LEFT JOIN ingredient_tags it ON it.ingredient_id = i.ingredient_id
LEFT JOIN tags itt ON itt.tag_id = it.tag_id
LEFT JOIN drink_tags dt ON dt.drink_id = d.drink_id
LEFT JOIN tags dtt ON dtt.tag_id = dt.tag_id
WHERE d.delete_time IS NULL AND %s
ORDER BY di.position, it.tag_id, dt.tag_id`

// GetDrink returns the full drink if viewer may see it.
func (s *Store) GetDrink(ctx context.Context, id int64, viewer query.Viewer) (*model.Drink, error) {
	pred, err := query.New().
		Where("d.drink_id = ?", id).
		Visibility("d.created_user_id", viewer).
		Build()
	if err != nil {
		return nil, err
	}

	var rows []drinkRow
	err = s.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		return sqlx.SelectContext(ctx, conn, &rows, conn.Rebind(fmt.Sprintf(drinkDetailSQL, pred.SQL)), pred.Args...)
	})
	if err != nil {
		return nil, classify("getting drink", err)
	}

	drinks := foldDrinks(rows)
	if len(drinks) == 0 {
		return nil, apperror.NotFound("drink", fmt.Sprint(id))
	}
	return &drinks[0], nil
}

func foldDrinks(rows []drinkRow) []model.Drink {
	drinks := assemble.NewFold[int64, model.Drink]()
	// recipe lines per drink, keyed by (drink, ingredient) so tags attach to the right line
	lines := assemble.NewFold[[2]int64, model.DrinkIngredient]()
	var order [][2]int64

	for _, r := range rows {
		drink, _ := drinks.Upsert(r.ID, r.shell)
		addTag(drinks, r.ID, drink, r.tagColumns)

		if !r.IngredientID.Valid {
			continue
		}
		key := [2]int64{r.ID, r.IngredientID.Int64}
		line, created := lines.Upsert(key, r.line)
		if created {
			order = append(order, key)
		}
		if r.IngredientTagID.Valid && lines.Child(key, "tag", r.IngredientTagID.Int64) {
			line.Ingredient.AddTag(model.Tag{
				ID:   r.IngredientTagID.Int64,
				Name: r.IngredientTagName.String,
				Type: r.IngredientTagType.String,
			})
		}
	}

	for _, key := range order {
		drink, _ := drinks.Get(key[0])
		line, _ := lines.Get(key)
		drink.Ingredients = append(drink.Ingredients, *line)
	}
	return drinks.Values()
}

// CreateDrink is the transactional drink writer: the drink row, every
// recipe line and every tag link commit together or not at all.
func (s *Store) CreateDrink(ctx context.Context, owner int64, in model.NewDrink) (int64, error) {
	if len(in.Ingredients) == 0 {
		return 0, apperror.ValidationFailed("ingredients", "A drink needs at least one ingredient")
	}

	var id int64
	err := s.pool.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, tx.Rebind(
			`INSERT INTO drinks (created_user_id, create_time, name, description)
			 VALUES (?, ?, ?, ?)
			 RETURNING drink_id`),
			owner, model.Now(), in.Name, in.Description,
		).Scan(&id)
		if err != nil {
			return classify("inserting drink", err)
		}

		for position, line := range in.Ingredients {
			if err := addDrinkLine(ctx, tx, owner, id, position, line); err != nil {
				return err
			}
		}
		return insertTagRefs(ctx, tx, query.DrinkTags, id, in.Tags)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("drink created",
		slog.Int64("drinkID", id),
		slog.Int64("owner", owner),
		slog.Int("ingredients", len(in.Ingredients)),
	)
	return id, nil
}

// addDrinkLine validates one recipe line against the caller's view of the
// ingredient table and inserts it.
func addDrinkLine(ctx context.Context, q querier, owner, drinkID int64, position int, line model.NewDrinkLine) error {
	ingredientID := line.Ingredient.ID
	if ingredientID == model.PlaceholderIngredientID {
		return apperror.ValidationFailed("ingredients", "The placeholder ingredient cannot be part of a drink")
	}
	if line.Volume == nil || *line.Volume <= 0 {
		return apperror.ValidationFailed("ingredients",
			fmt.Sprintf("Ingredient %d needs a volume greater than zero", ingredientID))
	}

	var one int
	err := sqlx.GetContext(ctx, q, &one, q.Rebind(
		`SELECT 1 FROM ingredients
		 WHERE ingredient_id = ? AND delete_time IS NULL AND created_user_id IN (?, ?)`),
		ingredientID, model.PublicUserID, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.ValidationFailed("ingredients", fmt.Sprintf("No ingredient of ID %d exists", ingredientID))
	}
	if err != nil {
		return classify("checking ingredient", err)
	}

	_, err = q.ExecContext(ctx, q.Rebind(
		`INSERT INTO drink_ingredients (drink_id, ingredient_id, position, volume) VALUES (?, ?, ?, ?)`),
		drinkID, ingredientID, position, *line.Volume)
	if err != nil {
		if isPrimaryKeyViolation(err) {
			return apperror.ValidationFailed("ingredients",
				fmt.Sprintf("Ingredient %d is listed more than once", ingredientID))
		}
		return classify("adding ingredient to drink", err)
	}
	return nil
}

// DeleteDrink soft-deletes a drink the owner controls.
func (s *Store) DeleteDrink(ctx context.Context, id, owner int64) error {
	return s.softDelete(ctx, taggables[model.DrinkKind], id, owner, "drink")
}
