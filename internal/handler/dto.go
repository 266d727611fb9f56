package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tabishimam2/reciepe-app-api/internal/domain"
)

// =============================================================================
// Users
// =============================================================================

type createUserRequest struct {
	Email    string `json:"email" validate:"required,max=255"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"max=255"`
}

type tokenRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// updateUserRequest is the body of PUT/PATCH on /me. PUT additionally
// requires every field.
type updateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,max=255"`
	Password *string `json:"password"`
	Name     *string `json:"name" validate:"omitempty,max=255"`
}

func (req updateUserRequest) missing() []string {
	var fields []string
	if req.Email == nil {
		fields = append(fields, "email")
	}
	if req.Password == nil {
		fields = append(fields, "password")
	}
	if req.Name == nil {
		fields = append(fields, "name")
	}
	return fields
}

type userResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func newUserResponse(u *domain.User) userResponse {
	return userResponse{Email: u.Email, Name: u.Name}
}

// =============================================================================
// Labels
// =============================================================================

type labelRef struct {
	Name string `json:"name"`
}

// labelRefList is an embedded label array that remembers whether its key
// was sent and whether it was an explicit null.
type labelRefList struct {
	set   bool
	null  bool
	items []labelRef
}

func (l *labelRefList) UnmarshalJSON(data []byte) error {
	l.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		l.null = true
		return nil
	}
	return json.Unmarshal(data, &l.items)
}

type labelRequest struct {
	Name *string `json:"name" validate:"omitempty,max=255"`
}

type labelResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func newLabelResponse(l *domain.Label) labelResponse {
	return labelResponse{ID: l.ID, Name: l.Name}
}

func newLabelResponses(labels []*domain.Label) []labelResponse {
	out := make([]labelResponse, len(labels))
	for i, l := range labels {
		out[i] = newLabelResponse(l)
	}
	return out
}

// =============================================================================
// Recipes
// =============================================================================

// recipeRequest is the body of recipe create and update. Absent keys stay
// nil. "tag" is accepted as an alias of "tags"; owner fields are ignored.
// Label arrays may be empty but not null.
type recipeRequest struct {
	Title       *string       `json:"title" validate:"omitempty,max=255"`
	Description *string       `json:"description"`
	TimeMinutes *int          `json:"time_minutes" validate:"omitempty,gte=0"`
	Price       *domain.Price `json:"price"`
	Link        *string       `json:"link" validate:"omitempty,max=255"`
	Tags        labelRefList  `json:"tags"`
	Tag         labelRefList  `json:"tag"`
	Ingredients labelRefList  `json:"ingredients"`
}

// missing lists the fields a full write must carry.
func (req recipeRequest) missing() []string {
	var fields []string
	if req.Title == nil {
		fields = append(fields, "title")
	}
	if req.TimeMinutes == nil {
		fields = append(fields, "time_minutes")
	}
	if req.Price == nil {
		fields = append(fields, "price")
	}
	return fields
}

// nullFields lists the label keys sent as an explicit null.
func (req recipeRequest) nullFields() []string {
	var fields []string
	for _, f := range []struct {
		name string
		list labelRefList
	}{{"tags", req.Tags}, {"tag", req.Tag}, {"ingredients", req.Ingredients}} {
		if f.list.null {
			fields = append(fields, f.name)
		}
	}
	return fields
}

func (req recipeRequest) tagRefs() *[]domain.LabelRef {
	if req.Tags.set {
		return toLabelRefs(req.Tags)
	}
	return toLabelRefs(req.Tag)
}

func (req recipeRequest) ingredientRefs() *[]domain.LabelRef {
	return toLabelRefs(req.Ingredients)
}

func toLabelRefs(in labelRefList) *[]domain.LabelRef {
	if !in.set {
		return nil
	}
	refs := make([]domain.LabelRef, len(in.items))
	for i, ref := range in.items {
		refs[i] = domain.LabelRef{Name: ref.Name}
	}
	return &refs
}

func valueOrEmpty[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// recipeResponse is the list shape.
type recipeResponse struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	TimeMinutes int             `json:"time_minutes"`
	Price       domain.Price    `json:"price"`
	Link        string          `json:"link"`
	Tags        []labelResponse `json:"tags"`
	Ingredients []labelResponse `json:"ingredients"`
}

// recipeDetailResponse is the detail shape.
type recipeDetailResponse struct {
	recipeResponse
	Description   string  `json:"description"`
	Image         *string `json:"image"`
	ImageBlurHash *string `json:"image_blurhash"`
}

type recipeImageResponse struct {
	ID            int64   `json:"id"`
	Image         *string `json:"image"`
	ImageBlurHash *string `json:"image_blurhash"`
}

func newRecipeResponse(rec *domain.Recipe) recipeResponse {
	return recipeResponse{
		ID:          rec.ID,
		Title:       rec.Title,
		TimeMinutes: rec.TimeMinutes,
		Price:       rec.Price,
		Link:        rec.Link,
		Tags:        newLabelResponses(rec.Tags),
		Ingredients: newLabelResponses(rec.Ingredients),
	}
}

func newRecipeDetailResponse(r *http.Request, rec *domain.Recipe) recipeDetailResponse {
	image, blurHash := imageFields(r, rec)
	return recipeDetailResponse{
		recipeResponse: newRecipeResponse(rec),
		Description:    rec.Description,
		Image:          image,
		ImageBlurHash:  blurHash,
	}
}

func newRecipeImageResponse(r *http.Request, rec *domain.Recipe) recipeImageResponse {
	image, blurHash := imageFields(r, rec)
	return recipeImageResponse{ID: rec.ID, Image: image, ImageBlurHash: blurHash}
}

// imageFields returns the absolute image URL and BlurHash, or nils when the
// recipe has no image.
func imageFields(r *http.Request, rec *domain.Recipe) (*string, *string) {
	if !rec.HasImage() {
		return nil, nil
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s/api/recipe/recipes/%d/image", scheme, r.Host, rec.ID)
	blurHash := rec.ImageBlurHash
	return &url, &blurHash
}
