// Package repository defines data access interfaces for the recipe API.
// These interfaces abstract database operations, allowing for different implementations
// (SQLite, PostgreSQL) while keeping the service layer clean.
package repository

import (
	"context"

	"github.com/tabishimam2/reciepe-app-api/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user. Returns domain.ErrUserAlreadyExists on a
	// duplicate email.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByEmail retrieves a user by email (exact match on the normalised form).
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *domain.User) error

	// Delete deletes a user by ID. Owned recipes and labels go with it.
	Delete(ctx context.Context, id int64) error

	// List returns users ordered by id with pagination.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.User], error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// =============================================================================
// Label Repository
// =============================================================================

// LabelRepository defines data access for one kind of label (tags or
// ingredients). Every read is scoped to an owner.
type LabelRepository interface {
	// Kind returns the label kind served by this repository.
	Kind() domain.LabelKind

	// GetOrCreate returns the owner's label with exactly this name, creating
	// it when absent. created reports whether a row was inserted.
	GetOrCreate(ctx context.Context, ownerID int64, name string) (label *domain.Label, created bool, err error)

	// GetByID retrieves a label by ID regardless of owner.
	GetByID(ctx context.Context, id int64) (*domain.Label, error)

	// List returns the owner's labels ordered by name descending.
	List(ctx context.Context, ownerID int64, opts LabelListOptions) ([]*domain.Label, error)

	// Update renames a label. Returns domain.ErrLabelAlreadyExists when the
	// owner already has a label with the new name.
	Update(ctx context.Context, label *domain.Label) error

	// Delete deletes a label and its recipe associations.
	Delete(ctx context.Context, id int64) error

	// ListForRecipes returns the labels attached to each recipe, keyed by
	// recipe ID and ordered by label ID.
	ListForRecipes(ctx context.Context, recipeIDs []int64) (map[int64][]*domain.Label, error)
}

// LabelListOptions contains options for listing labels.
type LabelListOptions struct {
	// AssignedOnly restricts the result to labels attached to at least one
	// recipe.
	AssignedOnly bool
}

// =============================================================================
// Recipe Repository
// =============================================================================

// RecipeRepository defines data access for recipe rows and their
// association sets. Returned recipes do not carry labels; the service
// layer fills them from the label repositories.
type RecipeRepository interface {
	// Create inserts the recipe and sets its ID.
	Create(ctx context.Context, recipe *domain.Recipe) error

	// GetByID retrieves a recipe by ID regardless of owner.
	GetByID(ctx context.Context, id int64) (*domain.Recipe, error)

	// Update writes every scalar field except the owner.
	Update(ctx context.Context, recipe *domain.Recipe) error

	// Delete deletes the recipe and its association rows.
	Delete(ctx context.Context, id int64) error

	// List returns the owner's recipes matching filter, ordered by ID
	// descending, each at most once.
	List(ctx context.Context, ownerID int64, filter domain.RecipeFilter) ([]*domain.Recipe, error)

	// ReplaceLabels makes labelIDs the exact association set of the given
	// kind for the recipe.
	ReplaceLabels(ctx context.Context, recipeID int64, kind domain.LabelKind, labelIDs []int64) error

	// ListImageKeys returns the non-empty image keys of the owner's recipes.
	ListImageKeys(ctx context.Context, ownerID int64) ([]string, error)

	// ImageKeyInUse reports whether any recipe references the image key.
	ImageKeyInUse(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Common Types
// =============================================================================

// ListOptions contains common pagination options.
type ListOptions struct {
	// Offset is the number of records to skip.
	Offset int

	// Limit is the maximum number of records to return. Zero means no limit.
	Limit int
}

// ListResult is a generic paginated list result.
type ListResult[T any] struct {
	// Items is the list of items.
	Items []*T

	// Total is the total number of items (without pagination).
	Total int64

	// Offset is the current offset.
	Offset int

	// Limit is the current limit.
	Limit int
}

// =============================================================================
// Transaction Support
// =============================================================================

// TxManager defines the interface for transaction management.
type TxManager interface {
	// WithTx executes the given function within a transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	// Repositories called with the ctx passed to fn join the transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repositories groups every repository of one database.
type Repositories struct {
	Users       UserRepository
	Tags        LabelRepository
	Ingredients LabelRepository
	Recipes     RecipeRepository
	Tx          TxManager
}

// Labels returns the label repository for kind.
func (r *Repositories) Labels(kind domain.LabelKind) LabelRepository {
	if kind == domain.LabelIngredient {
		return r.Ingredients
	}
	return r.Tags
}

// Database is the lifecycle surface shared by the SQL backends.
type Database interface {
	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Migrate applies pending schema migrations.
	Migrate(ctx context.Context) error

	// Close releases the underlying connections.
	Close() error
}
