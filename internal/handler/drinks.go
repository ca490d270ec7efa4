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

type DrinkService interface {
	List(ctx context.Context, f repository.DrinkFilter) ([]model.DrinkOverview, error)
	Get(ctx context.Context, id int64, userID *int64) (*model.Drink, error)
	Create(ctx context.Context, owner int64, in model.NewDrink) (int64, error)
	Delete(ctx context.Context, id, owner int64) error
}

type DrinkHandler struct {
	drinks DrinkService
	logger *slog.Logger
}

func NewDrinkHandler(drinks DrinkService, logger *slog.Logger) *DrinkHandler {
	return &DrinkHandler{drinks: drinks, logger: logger}
}

type drinksResponse struct {
	Drinks []model.DrinkOverview `json:"drinks"`
}

type newDrinkResponse struct {
	NewDrinkID int64 `json:"new_drink_id"`
}

// newDrinkRequest accepts the drink either bare or wrapped as {"drink": {...}},
// which is how older clients send it.
type newDrinkRequest struct {
	model.NewDrink
	Drink *model.NewDrink `json:"drink"`
}

func (req newDrinkRequest) unwrap() model.NewDrink {
	if req.Drink != nil {
		return *req.Drink
	}
	return req.NewDrink
}

// HandleList searches drink overviews visible to the caller.
//
// HTTP: GET /api/drinks
//
// Ingredient and tag sets take comma lists or repeated keys:
// include_ingredient_ids, exclude_ingredient_ids, require_all_ingredients,
// include_tag_ids, exclude_tag_ids, require_all_tags.
func (h *DrinkHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p := newQueryParams(r)
	f := repository.DrinkFilter{
		Viewer:         p.Viewer(auth.IdentityFrom(r.Context())),
		Name:           p.String("name"),
		MinStandards:   p.Float("min_standards"),
		MaxStandards:   p.Float("max_standards"),
		MinSugar:       p.Float("min_sugar"),
		MaxSugar:       p.Float("max_sugar"),
		MinIngredients: p.Int("min_ingredients"),
		MaxIngredients: p.Int("max_ingredients"),
		MinDate:        p.Time("min_date"),
		MaxDate:        p.Time("max_date"),
		Ingredients: query.SetFilter{
			Include:    p.IDs("include_ingredient_ids", "ingredient_ids"),
			Exclude:    p.IDs("exclude_ingredient_ids"),
			RequireAll: p.Flag("require_all_ingredients"),
		},
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

	list, err := h.drinks.List(r.Context(), f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []model.DrinkOverview{}
	}
	writeJSON(w, http.StatusOK, drinksResponse{Drinks: list})
}

// HandleGet returns one drink with its recipe and tags.
//
// HTTP: GET /api/drinks/{id}
func (h *DrinkHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	drink, err := h.drinks.Get(r.Context(), id, auth.IdentityFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, drink)
}

// HandleCreate stores a drink with its ingredients and tags in one
// transaction.
//
// HTTP: POST /api/drinks
// REQUEST BODY:
//
//	{"name": "Negroni", "description": "...",
//	 "ingredients": [{"ingredientType": {"id": 4}, "volume": 30}],
//	 "tags": [{"id": 2}]}
func (h *DrinkHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	owner, err := currentUser(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req newDrinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	id, err := h.drinks.Create(r.Context(), owner, req.unwrap())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newDrinkResponse{NewDrinkID: id})
}

// HandleDelete soft-deletes one of the caller's drinks.
//
// HTTP: DELETE /api/drinks/{id}
func (h *DrinkHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.drinks.Delete(r.Context(), id, owner); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
