package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/drink-tracker/internal/auth"
	"github.com/sakif/drink-tracker/internal/model"
	"github.com/sakif/drink-tracker/internal/query"
	"github.com/sakif/drink-tracker/internal/repository"
)

type IngredientService interface {
	List(ctx context.Context, f repository.IngredientFilter) ([]model.Ingredient, error)
	Create(ctx context.Context, owner int64, in model.NewIngredient) (int64, error)
	Delete(ctx context.Context, id, owner int64) error
}

type IngredientHandler struct {
	ingredients IngredientService
	logger      *slog.Logger
}

func NewIngredientHandler(ingredients IngredientService, logger *slog.Logger) *IngredientHandler {
	return &IngredientHandler{ingredients: ingredients, logger: logger}
}

type ingredientsResponse struct {
	Ingredients []model.Ingredient `json:"ingredients"`
}

type newIngredientResponse struct {
	NewIngredientID int64 `json:"new_ingredient_id"`
}

// HandleList searches ingredients visible to the caller.
//
// HTTP: GET /api/ingredients?name=&min_ABV=&max_ABV=&min_sugar=&max_sugar=
// &min_date=&max_date=&include_tag_ids=&exclude_tag_ids=&require_all_tags=
// &include_public=
func (h *IngredientHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p := newQueryParams(r)
	f := repository.IngredientFilter{
		Viewer:   p.Viewer(auth.IdentityFrom(r.Context())),
		Name:     p.String("name"),
		MinABV:   p.Float("min_ABV"),
		MaxABV:   p.Float("max_ABV"),
		MinSugar: p.Float("min_sugar"),
		MaxSugar: p.Float("max_sugar"),
		MinDate:  p.Time("min_date"),
		MaxDate:  p.Time("max_date"),
		Tags: query.SetFilter{
			Include:    p.IDs("include_tag_ids", "tags"),
			Exclude:    p.IDs("exclude_tag_ids"),
			RequireAll: p.Flag("require_all_tags"),
		},
	}
	if err := p.Err(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	list, err := h.ingredients.List(r.Context(), f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []model.Ingredient{}
	}
	writeJSON(w, http.StatusOK, ingredientsResponse{Ingredients: list})
}

// HandleCreate adds an ingredient owned by the caller.
//
// HTTP: POST /api/ingredients
// REQUEST BODY: {"name", "ABV", "sugarPercent", "description"?, "tags"?: [{"id"}]}
func (h *IngredientHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	owner, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var in model.NewIngredient
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	id, err := h.ingredients.Create(r.Context(), owner, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newIngredientResponse{NewIngredientID: id})
}

// HandleDelete soft-deletes one of the caller's ingredients.
//
// HTTP: DELETE /api/ingredients/{id}
func (h *IngredientHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	owner, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.ingredients.Delete(r.Context(), id, owner); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
