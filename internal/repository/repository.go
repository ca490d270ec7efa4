// Package repository declares the data-access contracts the services depend
// on, plus the filter types that travel from handlers to the query builder.
package repository

import (
	"context"
	"time"

	"github.com/sakif/drink-tracker/internal/model"
	"github.com/sakif/drink-tracker/internal/query"
)

// IngredientFilter holds the optional ingredient search fields. A nil
// pointer means the field was not supplied.
type IngredientFilter struct {
	Viewer   query.Viewer
	Name     *string
	MinABV   *float64
	MaxABV   *float64
	MinSugar *float64
	MaxSugar *float64
	MinDate  *time.Time
	MaxDate  *time.Time
	Tags     query.SetFilter
}

type DrinkFilter struct {
	Viewer         query.Viewer
	Name           *string
	MinStandards   *float64
	MaxStandards   *float64
	MinSugar       *float64
	MaxSugar       *float64
	MinIngredients *int64
	MaxIngredients *int64
	MinDate        *time.Time
	MaxDate        *time.Time
	Ingredients    query.SetFilter
	Tags           query.SetFilter
}

// SessionFilter always belongs to one owner; sessions are never public.
type SessionFilter struct {
	OwnerID      int64
	MinStandards *float64
	MaxStandards *float64
	MinSugar     *float64
	MaxSugar     *float64
	MinDuration  *float64 // minutes
	MaxDuration  *float64
	MinDate      *time.Time
	MaxDate      *time.Time
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) (int64, error)
	GetUserCredentials(ctx context.Context, username string) (*model.Credentials, error)
}

type LoginSessionRepository interface {
	CreateLoginSession(ctx context.Context, session model.LoginSession) error
	GetLoginSession(ctx context.Context, tokenID string) (*model.LoginSession, error)
	PurgeLoginSessions(ctx context.Context, expiredBefore time.Time) (int64, error)
}

type IngredientRepository interface {
	ListIngredients(ctx context.Context, f IngredientFilter) ([]model.Ingredient, error)
	CreateIngredient(ctx context.Context, owner int64, in model.NewIngredient) (int64, error)
	DeleteIngredient(ctx context.Context, id, owner int64) error
}

type DrinkRepository interface {
	ListDrinks(ctx context.Context, f DrinkFilter) ([]model.DrinkOverview, error)
	GetDrink(ctx context.Context, id int64, viewer query.Viewer) (*model.Drink, error)
	CreateDrink(ctx context.Context, owner int64, in model.NewDrink) (int64, error)
	DeleteDrink(ctx context.Context, id, owner int64) error
}

type TagRepository interface {
	ListTags(ctx context.Context, tagType *string) ([]model.Tag, error)
	AttachTag(ctx context.Context, kind model.TaggableKind, entityID, tagID, owner int64) error
	DetachTag(ctx context.Context, kind model.TaggableKind, entityID, tagID, owner int64) error
}

type SessionRepository interface {
	CreateSession(ctx context.Context, owner int64) (int64, error)
	ListSessions(ctx context.Context, f SessionFilter) ([]model.SessionOverview, error)
	GetSession(ctx context.Context, id, owner int64) (*model.DrinkingSession, error)
	AddDrinkToSession(ctx context.Context, owner, sessionID int64, in model.NewSessionDrink) (int64, error)
	RemoveDrinkFromSession(ctx context.Context, owner, sessionID, pairingID int64) error
	DeleteSession(ctx context.Context, owner, id int64) error
}
