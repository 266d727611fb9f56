package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tabishimam2/reciepe-app-api/internal/domain"
	"github.com/tabishimam2/reciepe-app-api/internal/repository"
)

// recipeRepository implements repository.RecipeRepository for SQLite.
type recipeRepository struct {
	db *DB
}

// NewRecipeRepository creates a new SQLite recipe repository.
func NewRecipeRepository(db *DB) repository.RecipeRepository {
	return &recipeRepository{db: db}
}

const recipeColumns = `r.id, r.user_id, r.title, r.description, r.time_minutes, r.price_cents, r.link,
	r.image_key, r.image_blurhash, r.created_at, r.updated_at`

// Create inserts a new recipe.
func (r *recipeRepository) Create(ctx context.Context, recipe *domain.Recipe) error {
	query := `
		INSERT INTO recipes (user_id, title, description, time_minutes, price_cents, link,
			image_key, image_blurhash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.conn(ctx).ExecContext(ctx, query,
		recipe.OwnerID,
		recipe.Title,
		recipe.Description,
		recipe.TimeMinutes,
		recipe.Price.Cents(),
		recipe.Link,
		recipe.ImageKey,
		recipe.ImageBlurHash,
		formatTime(recipe.CreatedAt),
		formatTime(recipe.UpdatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: owner %d", domain.ErrUserNotFound, recipe.OwnerID)
		}
		return fmt.Errorf("failed to create recipe: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	recipe.ID = id

	return nil
}

// GetByID retrieves a recipe by ID.
func (r *recipeRepository) GetByID(ctx context.Context, id int64) (*domain.Recipe, error) {
	row := r.db.conn(ctx).QueryRowContext(ctx, `SELECT `+recipeColumns+` FROM recipes r WHERE r.id = ?`, id)
	recipe, err := scanRecipe(row)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to get recipe by ID: %w", err)
	}
	return recipe, nil
}

// Update writes the scalar fields. The owner column is never touched.
func (r *recipeRepository) Update(ctx context.Context, recipe *domain.Recipe) error {
	recipe.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE recipes
		SET title = ?, description = ?, time_minutes = ?, price_cents = ?, link = ?,
			image_key = ?, image_blurhash = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.conn(ctx).ExecContext(ctx, query,
		recipe.Title,
		recipe.Description,
		recipe.TimeMinutes,
		recipe.Price.Cents(),
		recipe.Link,
		recipe.ImageKey,
		recipe.ImageBlurHash,
		formatTime(recipe.UpdatedAt),
		recipe.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update recipe: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrRecipeNotFound
	}
	return nil
}

// Delete deletes a recipe; association rows cascade.
func (r *recipeRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.conn(ctx).ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrRecipeNotFound
	}
	return nil
}

// List returns the owner's recipes matching filter, newest first.
// Filters use IN sub-queries so a recipe matching several ids appears once.
func (r *recipeRepository) List(ctx context.Context, ownerID int64, filter domain.RecipeFilter) ([]*domain.Recipe, error) {
	var b strings.Builder
	args := []any{ownerID}

	b.WriteString(`SELECT ` + recipeColumns + ` FROM recipes r WHERE r.user_id = ?`)
	for _, f := range []struct {
		kind domain.LabelKind
		ids  []int64
	}{
		{domain.LabelTag, filter.TagIDs},
		{domain.LabelIngredient, filter.IngredientIDs},
	} {
		if len(f.ids) == 0 {
			continue
		}
		fmt.Fprintf(&b, ` AND r.id IN (SELECT recipe_id FROM %s WHERE %s IN (%s))`,
			f.kind.JoinTable(), f.kind.JoinColumn(), placeholders(len(f.ids)))
		args = append(args, int64Args(f.ids)...)
	}
	b.WriteString(` ORDER BY r.id DESC`)

	rows, err := r.db.conn(ctx).QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	recipes := make([]*domain.Recipe, 0)
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		recipes = append(recipes, recipe)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recipes: %w", err)
	}
	return recipes, nil
}

// ReplaceLabels makes labelIDs the exact association set of kind.
// Call inside a transaction.
func (r *recipeRepository) ReplaceLabels(ctx context.Context, recipeID int64, kind domain.LabelKind, labelIDs []int64) error {
	if !kind.IsValid() {
		return fmt.Errorf("unknown label kind %q", kind)
	}
	q := r.db.conn(ctx)

	detach := fmt.Sprintf(`DELETE FROM %s WHERE recipe_id = ?`, kind.JoinTable())
	if _, err := q.ExecContext(ctx, detach, recipeID); err != nil {
		return fmt.Errorf("failed to clear recipe %s: %w", kind.Plural(), err)
	}

	insert := fmt.Sprintf(
		`INSERT INTO %s (recipe_id, %s) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		kind.JoinTable(), kind.JoinColumn(),
	)
	for _, id := range labelIDs {
		if _, err := q.ExecContext(ctx, insert, recipeID, id); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: %s %d", domain.ErrLabelNotFound, kind, id)
			}
			return fmt.Errorf("failed to attach %s: %w", kind, err)
		}
	}
	return nil
}

// ListImageKeys returns the image keys of the owner's recipes.
func (r *recipeRepository) ListImageKeys(ctx context.Context, ownerID int64) ([]string, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx,
		`SELECT image_key FROM recipes WHERE user_id = ? AND image_key <> '' ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list image keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan image key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// ImageKeyInUse reports whether any recipe references key.
func (r *recipeRepository) ImageKeyInUse(ctx context.Context, key string) (bool, error) {
	var inUse bool
	err := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM recipes WHERE image_key = ?)`, key).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("failed to check image key: %w", err)
	}
	return inUse, nil
}

func scanRecipe(s rowScanner) (*domain.Recipe, error) {
	recipe := &domain.Recipe{}
	var priceCents int64
	var createdAt, updatedAt string

	err := s.Scan(
		&recipe.ID,
		&recipe.OwnerID,
		&recipe.Title,
		&recipe.Description,
		&recipe.TimeMinutes,
		&priceCents,
		&recipe.Link,
		&recipe.ImageKey,
		&recipe.ImageBlurHash,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	recipe.Price = domain.Price(priceCents)
	recipe.CreatedAt = parseTime(createdAt)
	recipe.UpdatedAt = parseTime(updatedAt)
	return recipe, nil
}

// Ensure recipeRepository implements repository.RecipeRepository.
var _ repository.RecipeRepository = (*recipeRepository)(nil)
