package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/drink-tracker/internal/apperror"
	"github.com/sakif/drink-tracker/internal/model"
	"github.com/sakif/drink-tracker/internal/repository"
)

// MaxNameLength bounds ingredient and drink names.
const MaxNameLength = 100

type IngredientService struct {
	repo   repository.IngredientRepository
	logger *slog.Logger
}

func NewIngredientService(repo repository.IngredientRepository, logger *slog.Logger) *IngredientService {
	return &IngredientService{repo: repo, logger: logger}
}

func (s *IngredientService) List(ctx context.Context, f repository.IngredientFilter) ([]model.Ingredient, error) {
	return s.repo.ListIngredients(ctx, f)
}

// Create checks the fields and stores the ingredient with its tags.
func (s *IngredientService) Create(ctx context.Context, owner int64, in model.NewIngredient) (int64, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.ABV == nil || in.SugarPercent == nil {
		return 0, apperror.ValidationFailed("name", "Missing fields")
	}
	if err := checkName(in.Name); err != nil {
		return 0, err
	}
	if err := checkPercent("ABV", *in.ABV); err != nil {
		return 0, err
	}
	if err := checkPercent("sugarPercent", *in.SugarPercent); err != nil {
		return 0, err
	}

	id, err := s.repo.CreateIngredient(ctx, owner, in)
	if err != nil {
		return 0, err
	}
	s.logger.Info("ingredient created",
		slog.Int64("ingredientID", id),
		slog.Int64("owner", owner),
	)
	return id, nil
}

func (s *IngredientService) Delete(ctx context.Context, id, owner int64) error {
	if err := s.repo.DeleteIngredient(ctx, id, owner); err != nil {
		return err
	}
	s.logger.Info("ingredient deleted", slog.Int64("ingredientID", id))
	return nil
}

func checkName(name string) error {
	if len(name) > MaxNameLength {
		return apperror.ValidationFailed("name", "Name must be 100 characters or less")
	}
	return nil
}

func checkPercent(field string, v float64) error {
	if v < 0 || v > 100 {
		return apperror.ValidationFailed(field, field+" must be between 0 and 100")
	}
	return nil
}
