package domain

import (
	"time"
)

// Recipe is the aggregate root: scalar fields plus the owner's tags and
// ingredients attached to it.
type Recipe struct {
	// ID is the unique identifier for the recipe (auto-generated).
	ID int64

	// OwnerID is the user that created the recipe. It never changes.
	OwnerID int64

	Title       string
	Description string

	// TimeMinutes is the preparation time, never negative.
	TimeMinutes int

	Price Price

	// Link is an optional external URL.
	Link string

	// ImageKey is the storage key of the uploaded image, empty when none.
	ImageKey string

	// ImageBlurHash is a compact placeholder computed on upload.
	ImageBlurHash string

	// Tags and Ingredients are populated by the repositories on read.
	Tags        []*Label
	Ingredients []*Label

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecipe creates a new Recipe owned by ownerID.
func NewRecipe(ownerID int64, title string) *Recipe {
	now := time.Now().UTC()
	return &Recipe{
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// String returns the recipe title.
func (r *Recipe) String() string {
	return r.Title
}

// HasImage reports whether an image is attached.
func (r *Recipe) HasImage() bool {
	return r.ImageKey != ""
}

// Labels returns the attached labels of the given kind.
func (r *Recipe) Labels(kind LabelKind) []*Label {
	if kind == LabelIngredient {
		return r.Ingredients
	}
	return r.Tags
}

// SetLabels replaces the attached labels of the given kind.
func (r *Recipe) SetLabels(kind LabelKind, labels []*Label) {
	if kind == LabelIngredient {
		r.Ingredients = labels
		return
	}
	r.Tags = labels
}

// RecipeFilter narrows a recipe listing. A recipe matches a non-empty id
// list when it carries any of the ids; both lists must match when both
// are given.
type RecipeFilter struct {
	TagIDs        []int64
	IngredientIDs []int64
}
