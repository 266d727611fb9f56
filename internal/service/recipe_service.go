package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/tabishimam2/reciepe-app-api/internal/domain"
	"github.com/tabishimam2/reciepe-app-api/internal/metrics"
	"github.com/tabishimam2/reciepe-app-api/internal/repository"
	"github.com/tabishimam2/reciepe-app-api/internal/storage"
)

// RecipeServiceConfig holds recipe policy settings.
type RecipeServiceConfig struct {
	// MaxImageSize is the largest accepted image upload in bytes.
	MaxImageSize int64

	// MaxImagePixels caps width*height of an upload, checked before decoding.
	MaxImagePixels int64
}

// RecipeService handles the recipe aggregate: scalar fields, tag and
// ingredient association sets, and the optional image.
type RecipeService struct {
	repos      *repository.Repositories
	reconciler *Reconciler
	images     storage.Backend
	metrics    *metrics.Metrics
	config     RecipeServiceConfig
	logger     zerolog.Logger
}

// NewRecipeService creates a new RecipeService. m may be nil.
func NewRecipeService(
	repos *repository.Repositories,
	images storage.Backend,
	m *metrics.Metrics,
	config RecipeServiceConfig,
	logger zerolog.Logger,
) *RecipeService {
	return &RecipeService{
		repos:      repos,
		reconciler: NewReconciler(repos, m, logger),
		images:     images,
		metrics:    m,
		config:     config,
		logger:     logger.With().Str("service", "recipe").Logger(),
	}
}

// DefaultMaxImageSize applies when RecipeServiceConfig.MaxImageSize is unset.
const DefaultMaxImageSize = 10 << 20

// DefaultMaxImagePixels applies when RecipeServiceConfig.MaxImagePixels is
// unset.
const DefaultMaxImagePixels = 25_000_000

// MaxImagePixels returns the largest accepted width*height of an upload.
func (s *RecipeService) MaxImagePixels() int64 {
	if s.config.MaxImagePixels > 0 {
		return s.config.MaxImagePixels
	}
	return DefaultMaxImagePixels
}

// MaxImageSize returns the largest accepted image upload in bytes.
func (s *RecipeService) MaxImageSize() int64 {
	if s.config.MaxImageSize > 0 {
		return s.config.MaxImageSize
	}
	return DefaultMaxImageSize
}

// CreateRecipeInput contains the data needed to create a recipe.
type CreateRecipeInput struct {
	OwnerID     int64
	Title       string
	Description string
	TimeMinutes int
	Price       domain.Price
	Link        string
	Tags        []domain.LabelRef
	Ingredients []domain.LabelRef
}

// Create persists a recipe and reconciles both label sets in one transaction.
func (s *RecipeService) Create(ctx context.Context, input CreateRecipeInput) (*domain.Recipe, error) {
	recipe := domain.NewRecipe(input.OwnerID, strings.TrimSpace(input.Title))
	recipe.Description = input.Description
	recipe.TimeMinutes = input.TimeMinutes
	recipe.Price = input.Price
	recipe.Link = strings.TrimSpace(input.Link)

	verr := validateRecipe(recipe)
	ValidateRefs(verr, domain.LabelTag, input.Tags)
	ValidateRefs(verr, domain.LabelIngredient, input.Ingredients)
	if verr.HasErrors() {
		return nil, verr
	}

	err := s.repos.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Recipes.Create(ctx, recipe); err != nil {
			return fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		if err := s.reconciler.Apply(ctx, recipe, domain.LabelTag, input.Tags); err != nil {
			return err
		}
		return s.reconciler.Apply(ctx, recipe, domain.LabelIngredient, input.Ingredients)
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("owner_id", input.OwnerID).Msg("failed to create recipe")
		return nil, err
	}

	s.logger.Info().
		Int64("recipe_id", recipe.ID).
		Int64("owner_id", recipe.OwnerID).
		Int("tags", len(recipe.Tags)).
		Int("ingredients", len(recipe.Ingredients)).
		Msg("recipe created")
	return recipe, nil
}

// Get returns one of the owner's recipes with its labels.
func (s *RecipeService) Get(ctx context.Context, ownerID, id int64) (*domain.Recipe, error) {
	recipe, err := s.getOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.loadLabels(ctx, []*domain.Recipe{recipe}); err != nil {
		return nil, err
	}
	return recipe, nil
}

// ListRecipesInput contains the owner and optional filters.
type ListRecipesInput struct {
	OwnerID       int64
	TagIDs        []int64
	IngredientIDs []int64
}

// List returns the owner's recipes, newest first. A non-empty id filter
// keeps recipes attached to any of those ids; both filters intersect.
func (s *RecipeService) List(ctx context.Context, input ListRecipesInput) ([]*domain.Recipe, error) {
	recipes, err := s.repos.Recipes.List(ctx, input.OwnerID, domain.RecipeFilter{
		TagIDs:        input.TagIDs,
		IngredientIDs: input.IngredientIDs,
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("owner_id", input.OwnerID).Msg("failed to list recipes")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if err := s.loadLabels(ctx, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// UpdateRecipeInput carries a partial update. Nil scalar fields are left
// unchanged. Tags and Ingredients follow replace-if-present: nil leaves the
// association set untouched, a non-nil pointer (even to an empty slice)
// replaces it.
type UpdateRecipeInput struct {
	OwnerID     int64
	ID          int64
	Title       *string
	Description *string
	TimeMinutes *int
	Price       *domain.Price
	Link        *string
	Tags        *[]domain.LabelRef
	Ingredients *[]domain.LabelRef
}

// Update applies input to one of the owner's recipes. The owner itself is
// never changed.
func (s *RecipeService) Update(ctx context.Context, input UpdateRecipeInput) (*domain.Recipe, error) {
	var recipe *domain.Recipe

	err := s.repos.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		recipe, err = s.getOwned(ctx, input.OwnerID, input.ID)
		if err != nil {
			return err
		}

		if input.Title != nil {
			recipe.Title = strings.TrimSpace(*input.Title)
		}
		if input.Description != nil {
			recipe.Description = *input.Description
		}
		if input.TimeMinutes != nil {
			recipe.TimeMinutes = *input.TimeMinutes
		}
		if input.Price != nil {
			recipe.Price = *input.Price
		}
		if input.Link != nil {
			recipe.Link = strings.TrimSpace(*input.Link)
		}

		verr := validateRecipe(recipe)
		if input.Tags != nil {
			ValidateRefs(verr, domain.LabelTag, *input.Tags)
		}
		if input.Ingredients != nil {
			ValidateRefs(verr, domain.LabelIngredient, *input.Ingredients)
		}
		if verr.HasErrors() {
			return verr
		}

		if err := s.repos.Recipes.Update(ctx, recipe); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrRecipeNotFound
			}
			return fmt.Errorf("%w: %v", ErrInternalError, err)
		}

		if err := s.loadLabels(ctx, []*domain.Recipe{recipe}); err != nil {
			return err
		}
		if input.Tags != nil {
			if err := s.reconciler.Apply(ctx, recipe, domain.LabelTag, *input.Tags); err != nil {
				return err
			}
		}
		if input.Ingredients != nil {
			if err := s.reconciler.Apply(ctx, recipe, domain.LabelIngredient, *input.Ingredients); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInternalError) {
			s.logger.Error().Err(err).Int64("recipe_id", input.ID).Msg("failed to update recipe")
		}
		return nil, err
	}

	s.logger.Info().
		Int64("recipe_id", recipe.ID).
		Bool("tags_replaced", input.Tags != nil).
		Bool("ingredients_replaced", input.Ingredients != nil).
		Msg("recipe updated")
	return recipe, nil
}

// Delete removes one of the owner's recipes and its associations, then
// makes a best-effort attempt to remove its stored image.
func (s *RecipeService) Delete(ctx context.Context, ownerID, id int64) error {
	recipe, err := s.getOwned(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.repos.Recipes.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrRecipeNotFound
		}
		s.logger.Error().Err(err).Int64("recipe_id", id).Msg("failed to delete recipe")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if recipe.HasImage() {
		s.removeImage(ctx, recipe.ImageKey)
	}

	s.logger.Info().Int64("recipe_id", id).Msg("recipe deleted")
	return nil
}

// AttachImageInput contains an uploaded image.
type AttachImageInput struct {
	OwnerID int64
	ID      int64
	Data    []byte
}

// AttachImage validates data as an image, stores it under a fresh key and
// records the key and BlurHash on the recipe. A previous image is removed.
func (s *RecipeService) AttachImage(ctx context.Context, input AttachImageInput) (*domain.Recipe, error) {
	recipe, err := s.getOwned(ctx, input.OwnerID, input.ID)
	if err != nil {
		return nil, err
	}

	if int64(len(input.Data)) > s.MaxImageSize() {
		s.metrics.ImageUploaded(false)
		return nil, domain.NewValidationError("image",
			fmt.Sprintf("Ensure the file is no larger than %d bytes.", s.MaxImageSize()))
	}

	info, err := storage.InspectImage(input.Data, s.MaxImagePixels())
	if err != nil {
		s.metrics.ImageUploaded(false)
		if errors.Is(err, storage.ErrImageTooLarge) {
			return nil, domain.NewValidationError("image",
				fmt.Sprintf("Ensure the image has at most %d pixels.", s.MaxImagePixels()))
		}
		if errors.Is(err, storage.ErrUnsupportedImage) {
			return nil, domain.NewValidationError("image", msgInvalidImage)
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	key := storage.NewRecipeImageKey(info.Ext)
	if err := s.images.Put(ctx, key, bytes.NewReader(input.Data), int64(len(input.Data)), info.ContentType); err != nil {
		s.logger.Error().Err(err).Int64("recipe_id", recipe.ID).Msg("failed to store image")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	previous := recipe.ImageKey
	recipe.ImageKey = key
	recipe.ImageBlurHash = info.BlurHash
	if err := s.repos.Recipes.Update(ctx, recipe); err != nil {
		s.removeImage(ctx, key)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrRecipeNotFound
		}
		s.logger.Error().Err(err).Int64("recipe_id", recipe.ID).Msg("failed to record image")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if previous != "" && previous != key {
		s.removeImage(ctx, previous)
	}
	s.metrics.ImageUploaded(true)

	if err := s.loadLabels(ctx, []*domain.Recipe{recipe}); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("recipe_id", recipe.ID).
		Str("key", key).
		Str("format", info.Format).
		Int("width", info.Width).
		Int("height", info.Height).
		Msg("recipe image stored")
	return recipe, nil
}

// OpenImage opens the stored image of one of the owner's recipes. The caller
// must close the reader.
func (s *RecipeService) OpenImage(ctx context.Context, ownerID, id int64) (io.ReadCloser, string, error) {
	recipe, err := s.getOwned(ctx, ownerID, id)
	if err != nil {
		return nil, "", err
	}
	if !recipe.HasImage() {
		return nil, "", domain.ErrRecipeHasNoImage
	}

	rc, err := s.images.Get(ctx, recipe.ImageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn().Int64("recipe_id", id).Str("key", recipe.ImageKey).Msg("recorded image missing from storage")
			return nil, "", domain.ErrRecipeHasNoImage
		}
		return nil, "", fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return rc, storage.ContentTypeForKey(recipe.ImageKey), nil
}

// PurgeOwnerImages removes every stored image of the owner's recipes and
// returns how many were removed. Called before an account is deleted, since
// the database cascade cannot reach the image store.
func (s *RecipeService) PurgeOwnerImages(ctx context.Context, ownerID int64) (int, error) {
	keys, err := s.repos.Recipes.ListImageKeys(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	removed := 0
	for _, key := range keys {
		if err := s.images.Delete(ctx, key); err != nil {
			return removed, fmt.Errorf("%w: delete image %s: %v", ErrInternalError, key, err)
		}
		removed++
	}

	s.logger.Info().Int64("owner_id", ownerID).Int("images", removed).Msg("owner images purged")
	return removed, nil
}

// getOwned loads a recipe and folds owner mismatch into not-found.
func (s *RecipeService) getOwned(ctx context.Context, ownerID, id int64) (*domain.Recipe, error) {
	recipe, err := s.repos.Recipes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrRecipeNotFound
		}
		s.logger.Error().Err(err).Int64("recipe_id", id).Msg("failed to get recipe")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if recipe.OwnerID != ownerID {
		return nil, domain.ErrRecipeNotFound
	}
	return recipe, nil
}

// loadLabels fills Tags and Ingredients with one query per kind.
func (s *RecipeService) loadLabels(ctx context.Context, recipes []*domain.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	ids := make([]int64, len(recipes))
	for i, r := range recipes {
		ids[i] = r.ID
	}

	for _, kind := range domain.LabelKinds {
		byRecipe, err := s.repos.Labels(kind).ListForRecipes(ctx, ids)
		if err != nil {
			return fmt.Errorf("%w: load %s: %v", ErrInternalError, kind.Plural(), err)
		}
		for _, r := range recipes {
			labels := byRecipe[r.ID]
			if labels == nil {
				labels = []*domain.Label{}
			}
			r.SetLabels(kind, labels)
		}
	}
	return nil
}

func (s *RecipeService) removeImage(ctx context.Context, key string) {
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to remove stored image")
	}
}

func validateRecipe(recipe *domain.Recipe) *domain.ValidationError {
	verr := &domain.ValidationError{}
	switch {
	case recipe.Title == "":
		verr.Add("title", msgBlank)
	case utf8.RuneCountInString(recipe.Title) > maxCharLength:
		verr.Add("title", maxLengthMessage(maxCharLength))
	}
	if recipe.TimeMinutes < 0 {
		verr.Add("time_minutes", msgNegative)
	}
	if recipe.Price < 0 {
		verr.Add("price", msgNegative)
	}
	if utf8.RuneCountInString(recipe.Link) > maxCharLength {
		verr.Add("link", maxLengthMessage(maxCharLength))
	}
	return verr
}
