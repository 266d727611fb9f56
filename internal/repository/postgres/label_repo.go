package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabishimam2/reciepe-app-api/internal/domain"
	"github.com/tabishimam2/reciepe-app-api/internal/repository"
)

// labelRepository implements repository.LabelRepository for one label kind.
type labelRepository struct {
	db   *DB
	kind domain.LabelKind

	table      string
	joinTable  string
	joinColumn string
}

// NewLabelRepository creates a new PostgreSQL repository for tags or ingredients.
func NewLabelRepository(db *DB, kind domain.LabelKind) repository.LabelRepository {
	if !kind.IsValid() {
		panic(fmt.Sprintf("postgres: unknown label kind %q", kind))
	}
	return &labelRepository{
		db:         db,
		kind:       kind,
		table:      kind.Table(),
		joinTable:  kind.JoinTable(),
		joinColumn: kind.JoinColumn(),
	}
}

// Kind returns the label kind served by this repository.
func (r *labelRepository) Kind() domain.LabelKind {
	return r.kind
}

// GetOrCreate inserts the label unless it exists, then reads it back.
// The read is a separate statement so it sees rows committed by a
// concurrent inserter that won the conflict. A skipped insert still
// consumes a sequence value, so label IDs may have gaps.
func (r *labelRepository) GetOrCreate(ctx context.Context, ownerID int64, name string) (*domain.Label, bool, error) {
	q := r.db.conn(ctx)
	label := &domain.Label{OwnerID: ownerID, Kind: r.kind, Name: name}

	insert := fmt.Sprintf(`
		INSERT INTO %s (user_id, name) VALUES ($1, $2)
		ON CONFLICT (user_id, name) DO NOTHING
		RETURNING id
	`, r.table)
	err := q.QueryRow(ctx, insert, ownerID, name).Scan(&label.ID)
	if err == nil {
		return label, true, nil
	}
	if !isNoRows(err) {
		return nil, false, fmt.Errorf("failed to insert %s: %w", r.kind, err)
	}

	query := fmt.Sprintf(`SELECT id FROM %s WHERE user_id = $1 AND name = $2`, r.table)
	if err := q.QueryRow(ctx, query, ownerID, name).Scan(&label.ID); err != nil {
		return nil, false, fmt.Errorf("failed to get %s by name: %w", r.kind, err)
	}
	return label, false, nil
}

// GetByID retrieves a label by ID.
func (r *labelRepository) GetByID(ctx context.Context, id int64) (*domain.Label, error) {
	label := &domain.Label{Kind: r.kind}
	query := fmt.Sprintf(`SELECT id, user_id, name FROM %s WHERE id = $1`, r.table)

	err := r.db.conn(ctx).QueryRow(ctx, query, id).Scan(&label.ID, &label.OwnerID, &label.Name)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrLabelNotFound
		}
		return nil, fmt.Errorf("failed to get %s by ID: %w", r.kind, err)
	}
	return label, nil
}

// List returns the owner's labels ordered by name descending.
func (r *labelRepository) List(ctx context.Context, ownerID int64, opts repository.LabelListOptions) ([]*domain.Label, error) {
	var b strings.Builder
	fmt.Fprintf(&b, `SELECT l.id, l.user_id, l.name FROM %s l WHERE l.user_id = $1`, r.table)
	if opts.AssignedOnly {
		fmt.Fprintf(&b, ` AND EXISTS (SELECT 1 FROM %s j WHERE j.%s = l.id)`, r.joinTable, r.joinColumn)
	}
	b.WriteString(` ORDER BY l.name DESC, l.id DESC`)

	rows, err := r.db.conn(ctx).Query(ctx, b.String(), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.table, err)
	}
	defer rows.Close()

	labels := make([]*domain.Label, 0)
	for rows.Next() {
		label := &domain.Label{Kind: r.kind}
		if err := rows.Scan(&label.ID, &label.OwnerID, &label.Name); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", r.kind, err)
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", r.table, err)
	}
	return labels, nil
}

// Update renames a label.
func (r *labelRepository) Update(ctx context.Context, label *domain.Label) error {
	query := fmt.Sprintf(`UPDATE %s SET name = $1 WHERE id = $2`, r.table)

	tag, err := r.db.conn(ctx).Exec(ctx, query, label.Name, label.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", domain.ErrLabelAlreadyExists, label.Name)
		}
		return fmt.Errorf("failed to update %s: %w", r.kind, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLabelNotFound
	}
	return nil
}

// Delete deletes a label; association rows cascade.
func (r *labelRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)

	tag, err := r.db.conn(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", r.kind, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLabelNotFound
	}
	return nil
}

// ListForRecipes returns attached labels keyed by recipe ID.
func (r *labelRepository) ListForRecipes(ctx context.Context, recipeIDs []int64) (map[int64][]*domain.Label, error) {
	result := make(map[int64][]*domain.Label, len(recipeIDs))
	if len(recipeIDs) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`
		SELECT j.recipe_id, l.id, l.user_id, l.name
		FROM %s j
		JOIN %s l ON l.id = j.%s
		WHERE j.recipe_id = ANY($1)
		ORDER BY j.recipe_id, l.id
	`, r.joinTable, r.table, r.joinColumn)

	rows, err := r.db.conn(ctx).Query(ctx, query, recipeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s for recipes: %w", r.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var recipeID int64
		label := &domain.Label{Kind: r.kind}
		if err := rows.Scan(&recipeID, &label.ID, &label.OwnerID, &label.Name); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", r.kind, err)
		}
		result[recipeID] = append(result[recipeID], label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", r.table, err)
	}
	return result, nil
}

// Ensure labelRepository implements repository.LabelRepository.
var _ repository.LabelRepository = (*labelRepository)(nil)
