package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tabishimam2/reciepe-app-api/internal/auth"
	"github.com/tabishimam2/reciepe-app-api/internal/domain"
	"github.com/tabishimam2/reciepe-app-api/internal/service"
)

// multipartOverhead is the allowance for form boundaries and headers on
// top of the image itself.
const multipartOverhead = 64 << 10

const msgInvalidIDList = "Enter a comma-separated list of integer ids."

// RecipeHandler serves the recipe collection of the caller.
type RecipeHandler struct {
	recipes     *service.RecipeService
	validator   *Validator
	maxBodySize int64
	logger      zerolog.Logger
}

// NewRecipeHandler creates a new RecipeHandler.
func NewRecipeHandler(recipes *service.RecipeService, v *Validator, maxBodySize int64, logger zerolog.Logger) *RecipeHandler {
	return &RecipeHandler{
		recipes:     recipes,
		validator:   v,
		maxBodySize: maxBodySize,
		logger:      logger.With().Str("handler", "recipe").Logger(),
	}
}

// RegisterRoutes registers the recipe routes.
func (h *RecipeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/upload_image", h.UploadImage)
		r.Get("/image", h.Image)
	})
}

// List handles GET /recipes with optional tag and ingredients filters.
func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	q := r.URL.Query()

	verr := &domain.ValidationError{}
	tagParam := q.Get("tag")
	if tagParam == "" {
		tagParam = q.Get("tags")
	}
	tagIDs, err := parseIDList(tagParam)
	if err != nil {
		verr.Add("tag", msgInvalidIDList)
	}
	ingredientIDs, err := parseIDList(q.Get("ingredients"))
	if err != nil {
		verr.Add("ingredients", msgInvalidIDList)
	}
	if verr.HasErrors() {
		writeError(w, r, h.logger, verr)
		return
	}

	recipes, err := h.recipes.List(r.Context(), service.ListRecipesInput{
		OwnerID:       owner,
		TagIDs:        tagIDs,
		IngredientIDs: ingredientIDs,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]recipeResponse, len(recipes))
	for i, rec := range recipes {
		out[i] = newRecipeResponse(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

// Create handles POST /recipes.
func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRecipe(w, r, true)
	if !ok {
		return
	}

	input := service.CreateRecipeInput{
		OwnerID:     ownerID(r),
		Title:       *req.Title,
		Description: valueOrEmpty(req.Description),
		TimeMinutes: *req.TimeMinutes,
		Price:       *req.Price,
		Link:        valueOrEmpty(req.Link),
	}
	if refs := req.tagRefs(); refs != nil {
		input.Tags = *refs
	}
	if refs := req.ingredientRefs(); refs != nil {
		input.Ingredients = *refs
	}

	recipe, err := h.recipes.Create(r.Context(), input)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRecipeDetailResponse(r, recipe))
}

// Get handles GET /recipes/{id}.
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	recipe, err := h.recipes.Get(r.Context(), ownerID(r), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecipeDetailResponse(r, recipe))
}

// Update handles PUT and PATCH /recipes/{id}. Association keys follow
// replace-if-present for both methods.
func (h *RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeRecipe(w, r, r.Method == http.MethodPut)
	if !ok {
		return
	}

	recipe, err := h.recipes.Update(r.Context(), service.UpdateRecipeInput{
		OwnerID:     ownerID(r),
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		TimeMinutes: req.TimeMinutes,
		Price:       req.Price,
		Link:        req.Link,
		Tags:        req.tagRefs(),
		Ingredients: req.ingredientRefs(),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecipeDetailResponse(r, recipe))
}

// Delete handles DELETE /recipes/{id}.
func (h *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.recipes.Delete(r.Context(), ownerID(r), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage handles POST /recipes/{id}/upload_image with a multipart
// "image" field.
func (h *RecipeHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	limit := h.recipes.MaxImageSize()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, _, err := r.FormFile("image")
	if err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytes):
			writeError(w, r, h.logger, domain.NewValidationError("image",
				fmt.Sprintf("Ensure the image is at most %d bytes.", limit)))
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			writeError(w, r, h.logger, domain.NewValidationError("image", "No file was submitted."))
		default:
			writeError(w, r, h.logger, &bodyError{detail: "Multipart form parse error - " + err.Error(), err: err})
		}
		return
	}
	defer file.Close()

	// One byte past the limit is enough for the service to reject it.
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: read upload: %v", service.ErrInternalError, err))
		return
	}

	recipe, err := h.recipes.AttachImage(r.Context(), service.AttachImageInput{
		OwnerID: ownerID(r),
		ID:      id,
		Data:    data,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecipeImageResponse(r, recipe))
}

// Image handles GET /recipes/{id}/image.
func (h *RecipeHandler) Image(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	body, contentType, err := h.recipes.OpenImage(r.Context(), ownerID(r), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn().Err(err).Int64("recipe_id", id).Msg("failed to stream image")
	}
}

// decodeRecipe reads and validates a recipe body. full requires the fields
// of a create or PUT.
func (h *RecipeHandler) decodeRecipe(w http.ResponseWriter, r *http.Request, full bool) (recipeRequest, bool) {
	var req recipeRequest
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		writeError(w, r, h.logger, err)
		return req, false
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, r, h.logger, err)
		return req, false
	}
	if nulls := req.nullFields(); len(nulls) > 0 {
		verr := &domain.ValidationError{}
		for _, f := range nulls {
			verr.Add(f, "This field may not be null.")
		}
		writeError(w, r, h.logger, verr)
		return req, false
	}
	if full {
		if err := requireFields(req.missing()); err != nil {
			writeError(w, r, h.logger, err)
			return req, false
		}
	}
	return req, true
}

// ownerID returns the authenticated caller. Routes using it sit behind the
// token middleware.
func ownerID(r *http.Request) int64 {
	if authCtx := auth.GetAuthContext(r.Context()); authCtx != nil {
		return authCtx.UserID
	}
	return 0
}

// pathID parses the {id} URL parameter. Non-numeric ids are not found.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeDetail(w, http.StatusNotFound, detailNotFound)
		return 0, false
	}
	return id, true
}

// parseIDList parses a comma-separated list of integer ids. An empty
// string yields nil.
func parseIDList(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
