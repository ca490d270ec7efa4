package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/drink-tracker/internal/apperror"
	"github.com/sakif/drink-tracker/internal/model"
	"github.com/sakif/drink-tracker/internal/query"
	"github.com/sakif/drink-tracker/internal/repository"
)

type DrinkService struct {
	repo   repository.DrinkRepository
	logger *slog.Logger
}

func NewDrinkService(repo repository.DrinkRepository, logger *slog.Logger) *DrinkService {
	return &DrinkService{repo: repo, logger: logger}
}

func (s *DrinkService) List(ctx context.Context, f repository.DrinkFilter) ([]model.DrinkOverview, error) {
	return s.repo.ListDrinks(ctx, f)
}

// Get returns one drink. Signed-in callers see their own drinks and public
// ones; anonymous callers see public ones only.
func (s *DrinkService) Get(ctx context.Context, id int64, userID *int64) (*model.Drink, error) {
	viewer := query.Anonymous()
	if userID != nil {
		viewer = query.AsUser(*userID, true)
	}
	return s.repo.GetDrink(ctx, id, viewer)
}

// Create runs the checks that need no database, then hands the drink to the
// transactional writer.
func (s *DrinkService) Create(ctx context.Context, owner int64, in model.NewDrink) (int64, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return 0, apperror.ValidationFailed("name", "Missing fields")
	}
	if err := checkName(in.Name); err != nil {
		return 0, err
	}
	if len(in.Ingredients) == 0 {
		return 0, apperror.ValidationFailed("ingredients", "A drink needs at least one ingredient")
	}

	seen := make(map[int64]bool, len(in.Ingredients))
	for _, line := range in.Ingredients {
		id := line.Ingredient.ID
		switch {
		case id == model.PlaceholderIngredientID:
			return 0, apperror.ValidationFailed("ingredients", "The placeholder ingredient cannot be part of a drink")
		case id <= 0:
			return 0, apperror.ValidationFailed("ingredients", fmt.Sprintf("No ingredient of ID %d exists", id))
		case line.Volume == nil || *line.Volume <= 0:
			return 0, apperror.ValidationFailed("ingredients",
				fmt.Sprintf("Ingredient %d needs a volume greater than zero", id))
		case seen[id]:
			return 0, apperror.ValidationFailed("ingredients",
				fmt.Sprintf("Ingredient %d is listed more than once", id))
		}
		seen[id] = true
	}

	id, err := s.repo.CreateDrink(ctx, owner, in)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *DrinkService) Delete(ctx context.Context, id, owner int64) error {
	if err := s.repo.DeleteDrink(ctx, id, owner); err != nil {
		return err
	}
	s.logger.Info("drink deleted", slog.Int64("drinkID", id), slog.Int64("owner", owner))
	return nil
}
