package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/tabishimam2/reciepe-app-api/internal/domain"
	"github.com/tabishimam2/reciepe-app-api/internal/metrics"
	"github.com/tabishimam2/reciepe-app-api/internal/repository"
)

// Reconciler resolves embedded {name} label references to the owner's rows,
// creating missing ones, and makes them a recipe's association set.
type Reconciler struct {
	repos   *repository.Repositories
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewReconciler creates a Reconciler. m may be nil.
func NewReconciler(repos *repository.Repositories, m *metrics.Metrics, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		repos:   repos,
		metrics: m,
		logger:  logger.With().Str("service", "reconcile").Logger(),
	}
}

// ValidateRefs checks every name before anything is written. Problems are
// added to verr under the plural field name of kind.
func ValidateRefs(verr *domain.ValidationError, kind domain.LabelKind, refs []domain.LabelRef) {
	for i, ref := range refs {
		if _, msg := cleanLabelName(ref.Name); msg != "" {
			verr.Add(kind.Plural(), fmt.Sprintf("item %d: name: %s", i, msg))
		}
	}
}

// Resolve maps refs to the owner's labels in payload order. Names are
// trimmed but not case-folded; repeated names yield one label.
func (r *Reconciler) Resolve(ctx context.Context, ownerID int64, kind domain.LabelKind, refs []domain.LabelRef) ([]*domain.Label, error) {
	repo := r.repos.Labels(kind)
	labels := make([]*domain.Label, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))

	for _, ref := range refs {
		name, msg := cleanLabelName(ref.Name)
		if msg != "" {
			return nil, domain.NewValidationError(kind.Plural(), "name: "+msg)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		label, created, err := repo.GetOrCreate(ctx, ownerID, name)
		if err != nil {
			return nil, fmt.Errorf("%w: resolve %s %q: %v", ErrInternalError, kind, name, err)
		}
		r.metrics.LabelResolved(kind.String(), created)
		if created {
			r.logger.Debug().
				Int64("owner_id", ownerID).
				Int64("label_id", label.ID).
				Str("kind", kind.String()).
				Msg("label created during reconciliation")
		}
		labels = append(labels, label)
	}
	return labels, nil
}

// Apply resolves refs and replaces the recipe's association set of kind
// with the result. An empty refs slice clears the set. Must run inside the
// caller's transaction.
func (r *Reconciler) Apply(ctx context.Context, recipe *domain.Recipe, kind domain.LabelKind, refs []domain.LabelRef) error {
	labels, err := r.Resolve(ctx, recipe.OwnerID, kind, refs)
	if err != nil {
		return err
	}

	ids := make([]int64, len(labels))
	for i, l := range labels {
		ids[i] = l.ID
	}
	if err := r.repos.Recipes.ReplaceLabels(ctx, recipe.ID, kind, ids); err != nil {
		return fmt.Errorf("%w: replace %s: %v", ErrInternalError, kind.Plural(), err)
	}

	// Reads return associations ordered by label ID.
	slices.SortFunc(labels, func(a, b *domain.Label) int { return cmp.Compare(a.ID, b.ID) })
	recipe.SetLabels(kind, labels)
	return nil
}
