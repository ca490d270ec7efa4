package model

// PlaceholderIngredientID is the reserved "no ingredient" row. It exists so
// clients have something to point at while building a drink, but it can never
// be stored as part of one.
const PlaceholderIngredientID int64 = 1

// StandardDrinkFactor converts mL of pure alcohol to standard drinks.
const StandardDrinkFactor = 0.078

// Tag is global reference data attached to ingredients and drinks.
type Tag struct {
	ID   int64  `json:"id"   db:"tag_id"`
	Name string `json:"name" db:"name"`
	Type string `json:"type" db:"type"`
}

// Taggable is implemented by every entity that carries a tag set.
type Taggable interface {
	TagList() []Tag
	// AddTag appends tag unless one with the same id is already present.
	AddTag(tag Tag) bool
}

// TaggableKind selects which taggable table a tag edit targets.
type TaggableKind string

const (
	IngredientKind TaggableKind = "ingredient"
	DrinkKind      TaggableKind = "drink"
)

type tagSet []Tag

func (s *tagSet) add(tag Tag) bool {
	for _, t := range *s {
		if t.ID == tag.ID {
			return false
		}
	}
	*s = append(*s, tag)
	return true
}

// Ingredient is a drink component. ABV and SugarPercent are 0-100.
//
// The storage layer calls these ingredient_id / sugar_percent and carries a
// delete_time marker; none of that appears here.
type Ingredient struct {
	ID            int64     `json:"id"`
	CreatedUserID int64     `json:"created_user_id"`
	CreateTime    Timestamp `json:"create_time"`
	Name          string    `json:"name"`
	ABV           float64   `json:"ABV"`
	SugarPercent  float64   `json:"sugarPercent"`
	Description   *string   `json:"description,omitempty"`
	Tags          []Tag     `json:"tags"`
}

func (i *Ingredient) TagList() []Tag { return i.Tags }

func (i *Ingredient) AddTag(tag Tag) bool {
	s := tagSet(i.Tags)
	added := s.add(tag)
	i.Tags = s
	return added
}

// NewIngredient is the create input. Pointers distinguish "absent" from zero.
type NewIngredient struct {
	Name         string   `json:"name"`
	ABV          *float64 `json:"ABV"`
	SugarPercent *float64 `json:"sugarPercent"`
	Description  *string  `json:"description"`
	Tags         []TagRef `json:"tags"`
}

// TagRef and IngredientRef are the id-only references clients send.
type TagRef struct {
	ID int64 `json:"id"`
}

type IngredientRef struct {
	ID int64 `json:"id"`
}

// DrinkIngredient is one ordered line of a drink's recipe.
type DrinkIngredient struct {
	Ingredient Ingredient `json:"ingredientType"`
	Volume     float64    `json:"volume"` // mL
}

// Drink is the full drink with its recipe and tags.
type Drink struct {
	ID            int64             `json:"id"`
	CreatedUserID int64             `json:"created_user_id"`
	CreateTime    Timestamp         `json:"create_time"`
	Name          string            `json:"name"`
	Description   *string           `json:"description,omitempty"`
	Ingredients   []DrinkIngredient `json:"ingredients"`
	Tags          []Tag             `json:"tags"`
}

func (d *Drink) TagList() []Tag { return d.Tags }

func (d *Drink) AddTag(tag Tag) bool {
	s := tagSet(d.Tags)
	added := s.add(tag)
	d.Tags = s
	return added
}

// StandardDrinks is the sum of (ABV/100) * volume * StandardDrinkFactor.
func (d *Drink) StandardDrinks() float64 {
	var total float64
	for _, line := range d.Ingredients {
		total += line.Ingredient.ABV / 100 * line.Volume * StandardDrinkFactor
	}
	return total
}

// SugarGrams is the sum of (sugarPercent/100) * volume.
func (d *Drink) SugarGrams() float64 {
	var total float64
	for _, line := range d.Ingredients {
		total += line.Ingredient.SugarPercent / 100 * line.Volume
	}
	return total
}

// NewDrinkLine is one requested recipe line.
type NewDrinkLine struct {
	Ingredient IngredientRef `json:"ingredientType"`
	Volume     *float64      `json:"volume"`
}

// NewDrink is the create input for the transactional drink writer.
type NewDrink struct {
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	Ingredients []NewDrinkLine `json:"ingredients"`
	Tags        []TagRef       `json:"tags"`
}

// DrinkOverview is the aggregated, read-only projection used by listings.
type DrinkOverview struct {
	ID            int64     `json:"id"              db:"drink_id"`
	Name          string    `json:"name"            db:"name"`
	CreatedUserID int64     `json:"created_user_id" db:"created_user_id"`
	CreateTime    Timestamp `json:"create_time"     db:"create_time"`
	NIngredients  int64     `json:"n_ingredients"   db:"n_ingredients"`
	NStandards    float64   `json:"n_standards"     db:"n_standards"`
	SugarG        float64   `json:"sugar_g"         db:"sugar_g"`
}

var (
	_ Taggable = (*Ingredient)(nil)
	_ Taggable = (*Drink)(nil)
)
