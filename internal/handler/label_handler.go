package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tabishimam2/reciepe-app-api/internal/domain"
	"github.com/tabishimam2/reciepe-app-api/internal/service"
)

// LabelHandler serves one label collection (tags or ingredients). Labels
// are created only through recipe payloads.
type LabelHandler struct {
	labels      *service.LabelService
	validator   *Validator
	maxBodySize int64
	logger      zerolog.Logger
}

// NewLabelHandler creates a new LabelHandler.
func NewLabelHandler(labels *service.LabelService, v *Validator, maxBodySize int64, logger zerolog.Logger) *LabelHandler {
	return &LabelHandler{
		labels:      labels,
		validator:   v,
		maxBodySize: maxBodySize,
		logger:      logger.With().Str("handler", labels.Kind().Plural()).Logger(),
	}
}

// RegisterRoutes registers the label routes.
func (h *LabelHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
	})
}

// List handles GET with the optional assigned_only=0|1 flag.
func (h *LabelHandler) List(w http.ResponseWriter, r *http.Request) {
	assignedOnly := false
	if raw := r.URL.Query().Get("assigned_only"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, h.logger, domain.NewValidationError("assigned_only", "A valid integer is required."))
			return
		}
		assignedOnly = n != 0
	}

	labels, err := h.labels.List(r.Context(), service.ListLabelsInput{
		OwnerID:      ownerID(r),
		AssignedOnly: assignedOnly,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newLabelResponses(labels))
}

// Get handles GET /{id}.
func (h *LabelHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	label, err := h.labels.Get(r.Context(), ownerID(r), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newLabelResponse(label))
}

// Update handles PUT and PATCH /{id}. PUT requires name.
func (h *LabelHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req labelRequest
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if r.Method == http.MethodPut && req.Name == nil {
		writeError(w, r, h.logger, requireFields([]string{"name"}))
		return
	}

	label, err := h.labels.Update(r.Context(), service.UpdateLabelInput{
		OwnerID: ownerID(r),
		ID:      id,
		Name:    req.Name,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newLabelResponse(label))
}

// Delete handles DELETE /{id}.
func (h *LabelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.labels.Delete(r.Context(), ownerID(r), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
