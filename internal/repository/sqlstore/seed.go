package sqlstore

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"github.com/sakif/drink-tracker/internal/model"
)

//go:embed seed.yaml
var defaultSeed []byte

// SeedData is the reference data file format.
type SeedData struct {
	Tags        []SeedTag        `yaml:"tags"`
	Ingredients []SeedIngredient `yaml:"ingredients"`
}

type SeedTag struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// SeedIngredient is a public ingredient. Tags name entries of SeedData.Tags.
type SeedIngredient struct {
	Name         string   `yaml:"name"`
	ABV          float64  `yaml:"abv"`
	SugarPercent float64  `yaml:"sugar_percent"`
	Description  *string  `yaml:"description"`
	Tags         []string `yaml:"tags"`
}

// ParseSeed decodes a seed file.
func ParseSeed(b []byte) (SeedData, error) {
	var data SeedData
	if err := yaml.Unmarshal(b, &data); err != nil {
		return SeedData{}, fmt.Errorf("sqlstore: decoding seed: %w", err)
	}
	return data, nil
}

// DefaultSeed is the embedded reference data.
func DefaultSeed() (SeedData, error) {
	return ParseSeed(defaultSeed)
}

// Seed inserts reference tags and public ingredients in one transaction.
// Existing rows win; running it twice changes nothing.
func (s *Store) Seed(ctx context.Context, data SeedData) error {
	tagTypes := make(map[string]string, len(data.Tags))
	for _, t := range data.Tags {
		tagTypes[t.Name] = t.Type
	}

	var addedTags, addedIngredients int64
	err := s.pool.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, t := range data.Tags {
			res, err := tx.ExecContext(ctx, tx.Rebind(
				`INSERT INTO tags (name, type) VALUES (?, ?) ON CONFLICT DO NOTHING`),
				t.Name, t.Type)
			if err != nil {
				return fmt.Errorf("sqlstore: seeding tag %q: %w", t.Name, err)
			}
			n, _ := res.RowsAffected()
			addedTags += n
		}

		now := model.Now()
		for _, in := range data.Ingredients {
			res, err := tx.ExecContext(ctx, tx.Rebind(
				`INSERT INTO ingredients (created_user_id, create_time, name, abv, sugar_percent, description)
				 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`),
				model.PublicUserID, now, in.Name, in.ABV, in.SugarPercent, in.Description)
			if err != nil {
				return fmt.Errorf("sqlstore: seeding ingredient %q: %w", in.Name, err)
			}
			n, _ := res.RowsAffected()
			addedIngredients += n

			for _, tagName := range in.Tags {
				tagType, ok := tagTypes[tagName]
				if !ok {
					return fmt.Errorf("sqlstore: seed ingredient %q references unknown tag %q", in.Name, tagName)
				}
				_, err := tx.ExecContext(ctx, tx.Rebind(
					`INSERT INTO ingredient_tags (ingredient_id, tag_id)
					 SELECT i.ingredient_id, t.tag_id
					 FROM ingredients i, tags t
					 WHERE i.created_user_id = ? AND i.name = ? AND i.delete_time IS NULL
					   AND t.name = ? AND t.type = ?
					 ON CONFLICT DO NOTHING`),
					model.PublicUserID, in.Name, tagName, tagType)
				if err != nil {
					return fmt.Errorf("sqlstore: tagging seed ingredient %q: %w", in.Name, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("reference data seeded",
		slog.Int64("newTags", addedTags),
		slog.Int64("newIngredients", addedIngredients),
	)
	return nil
}
