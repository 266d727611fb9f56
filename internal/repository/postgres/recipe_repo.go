package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tabishimam2/reciepe-app-api/internal/domain"
	"github.com/tabishimam2/reciepe-app-api/internal/repository"
)

// recipeRepository implements repository.RecipeRepository.
type recipeRepository struct {
	db *DB
}

// NewRecipeRepository creates a new PostgreSQL recipe repository.
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err := r.db.conn(ctx).QueryRow(ctx, query,
		recipe.OwnerID,
		recipe.Title,
		recipe.Description,
		recipe.TimeMinutes,
		recipe.Price.Cents(),
		recipe.Link,
		recipe.ImageKey,
		recipe.ImageBlurHash,
		recipe.CreatedAt,
		recipe.UpdatedAt,
	).Scan(&recipe.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: owner %d", domain.ErrUserNotFound, recipe.OwnerID)
		}
		return fmt.Errorf("failed to create recipe: %w", err)
	}
	return nil
}

// GetByID retrieves a recipe by ID.
func (r *recipeRepository) GetByID(ctx context.Context, id int64) (*domain.Recipe, error) {
	recipe, err := scanRecipe(r.db.conn(ctx).QueryRow(ctx, `SELECT `+recipeColumns+` FROM recipes r WHERE r.id = $1`, id))
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
		SET title = $1, description = $2, time_minutes = $3, price_cents = $4, link = $5,
			image_key = $6, image_blurhash = $7, updated_at = $8
		WHERE id = $9
	`

	tag, err := r.db.conn(ctx).Exec(ctx, query,
		recipe.Title,
		recipe.Description,
		recipe.TimeMinutes,
		recipe.Price.Cents(),
		recipe.Link,
		recipe.ImageKey,
		recipe.ImageBlurHash,
		recipe.UpdatedAt,
		recipe.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update recipe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecipeNotFound
	}
	return nil
}

// Delete deletes a recipe; association rows cascade.
func (r *recipeRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.conn(ctx).Exec(ctx, `DELETE FROM recipes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecipeNotFound
	}
	return nil
}

// List returns the owner's recipes matching filter, newest first.
func (r *recipeRepository) List(ctx context.Context, ownerID int64, filter domain.RecipeFilter) ([]*domain.Recipe, error) {
	var b strings.Builder
	args := []any{ownerID}

	b.WriteString(`SELECT ` + recipeColumns + ` FROM recipes r WHERE r.user_id = $1`)
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
		args = append(args, f.ids)
		fmt.Fprintf(&b, ` AND r.id IN (SELECT recipe_id FROM %s WHERE %s = ANY($%d))`,
			f.kind.JoinTable(), f.kind.JoinColumn(), len(args))
	}
	b.WriteString(` ORDER BY r.id DESC`)

	rows, err := r.db.conn(ctx).Query(ctx, b.String(), args...)
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

	detach := fmt.Sprintf(`DELETE FROM %s WHERE recipe_id = $1`, kind.JoinTable())
	if _, err := q.Exec(ctx, detach, recipeID); err != nil {
		return fmt.Errorf("failed to clear recipe %s: %w", kind.Plural(), err)
	}
	if len(labelIDs) == 0 {
		return nil
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (recipe_id, %s)
		SELECT $1::bigint, unnest($2::bigint[])
		ON CONFLICT DO NOTHING
	`, kind.JoinTable(), kind.JoinColumn())
	if _, err := q.Exec(ctx, insert, recipeID, labelIDs); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrLabelNotFound, kind)
		}
		return fmt.Errorf("failed to attach %s: %w", kind.Plural(), err)
	}
	return nil
}

// ListImageKeys returns the image keys of the owner's recipes.
func (r *recipeRepository) ListImageKeys(ctx context.Context, ownerID int64) ([]string, error) {
	rows, err := r.db.conn(ctx).Query(ctx,
		`SELECT image_key FROM recipes WHERE user_id = $1 AND image_key <> '' ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list image keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan image keys: %w", err)
	}
	return keys, nil
}

// ImageKeyInUse reports whether any recipe references key.
func (r *recipeRepository) ImageKeyInUse(ctx context.Context, key string) (bool, error) {
	var inUse bool
	err := r.db.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM recipes WHERE image_key = $1)`, key).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("failed to check image key: %w", err)
	}
	return inUse, nil
}

func scanRecipe(row pgx.Row) (*domain.Recipe, error) {
	recipe := &domain.Recipe{}
	var priceCents int64

	err := row.Scan(
		&recipe.ID,
		&recipe.OwnerID,
		&recipe.Title,
		&recipe.Description,
		&recipe.TimeMinutes,
		&priceCents,
		&recipe.Link,
		&recipe.ImageKey,
		&recipe.ImageBlurHash,
		&recipe.CreatedAt,
		&recipe.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	recipe.Price = domain.Price(priceCents)
	return recipe, nil
}

// Ensure recipeRepository implements repository.RecipeRepository.
var _ repository.RecipeRepository = (*recipeRepository)(nil)
