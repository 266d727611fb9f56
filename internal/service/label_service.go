package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/tabishimam2/reciepe-app-api/internal/domain"
	"github.com/tabishimam2/reciepe-app-api/internal/repository"
)

// LabelService manages one kind of label (tags or ingredients) on behalf of
// its owner. Rows owned by someone else are reported as not found.
type LabelService struct {
	repo   repository.LabelRepository
	logger zerolog.Logger
}

// NewLabelService creates a new LabelService.
func NewLabelService(repo repository.LabelRepository, logger zerolog.Logger) *LabelService {
	return &LabelService{
		repo:   repo,
		logger: logger.With().Str("service", repo.Kind().Plural()).Logger(),
	}
}

// Kind returns the label kind managed by this service.
func (s *LabelService) Kind() domain.LabelKind {
	return s.repo.Kind()
}

// ListLabelsInput contains the options for listing labels.
type ListLabelsInput struct {
	OwnerID      int64
	AssignedOnly bool
}

// List returns the owner's labels ordered by name descending.
func (s *LabelService) List(ctx context.Context, input ListLabelsInput) ([]*domain.Label, error) {
	labels, err := s.repo.List(ctx, input.OwnerID, repository.LabelListOptions{
		AssignedOnly: input.AssignedOnly,
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("owner_id", input.OwnerID).Msg("failed to list labels")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return labels, nil
}

// Get returns one of the owner's labels.
func (s *LabelService) Get(ctx context.Context, ownerID, id int64) (*domain.Label, error) {
	label, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrLabelNotFound
		}
		s.logger.Error().Err(err).Int64("label_id", id).Msg("failed to get label")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if label.OwnerID != ownerID {
		return nil, domain.ErrLabelNotFound
	}
	return label, nil
}

// UpdateLabelInput carries a partial label update. A nil Name leaves the
// name unchanged.
type UpdateLabelInput struct {
	OwnerID int64
	ID      int64
	Name    *string
}

// Update renames one of the owner's labels.
func (s *LabelService) Update(ctx context.Context, input UpdateLabelInput) (*domain.Label, error) {
	label, err := s.Get(ctx, input.OwnerID, input.ID)
	if err != nil {
		return nil, err
	}
	if input.Name == nil {
		return label, nil
	}

	name, msg := cleanLabelName(*input.Name)
	if msg != "" {
		return nil, domain.NewValidationError("name", msg)
	}
	if name == label.Name {
		return label, nil
	}

	label.Name = name
	if err := s.repo.Update(ctx, label); err != nil {
		switch {
		case errors.Is(err, domain.ErrLabelAlreadyExists):
			return nil, domain.NewValidationError("name", msgNameTaken)
		case errors.Is(err, domain.ErrNotFound):
			return nil, domain.ErrLabelNotFound
		}
		s.logger.Error().Err(err).Int64("label_id", label.ID).Msg("failed to update label")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("label_id", label.ID).Msg("label renamed")
	return label, nil
}

// Delete removes one of the owner's labels and its recipe associations.
// The recipes themselves are kept.
func (s *LabelService) Delete(ctx context.Context, ownerID, id int64) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrLabelNotFound
		}
		s.logger.Error().Err(err).Int64("label_id", id).Msg("failed to delete label")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("label_id", id).Msg("label deleted")
	return nil
}

// cleanLabelName trims surrounding whitespace and returns a field message
// when the result is unusable. Case is preserved.
func cleanLabelName(raw string) (string, string) {
	name := strings.TrimSpace(raw)
	switch {
	case name == "":
		return "", msgBlank
	case utf8.RuneCountInString(name) > maxCharLength:
		return "", maxLengthMessage(maxCharLength)
	}
	return name, ""
}
