// Package domain contains the core business entities of the recipe API.
package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ErrNotFound is the base for every "entity does not exist or is not
	// visible to the caller" error.
	ErrNotFound = errors.New("not found")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

	// ErrUserAlreadyExists indicates a user with the same email exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserInactive indicates the user account is disabled.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ===========================================
	// Recipe Errors
	// ===========================================

	// ErrRecipeNotFound indicates the recipe does not exist or belongs to
	// another user.
	ErrRecipeNotFound = fmt.Errorf("recipe %w", ErrNotFound)

	// ErrRecipeHasNoImage indicates an image was requested for a recipe
	// without one.
	ErrRecipeHasNoImage = fmt.Errorf("recipe image %w", ErrNotFound)

	// ===========================================
	// Label Errors
	// ===========================================

	// ErrLabelNotFound indicates the tag or ingredient does not exist or
	// belongs to another user.
	ErrLabelNotFound = fmt.Errorf("label %w", ErrNotFound)

	// ErrLabelAlreadyExists indicates the owner already has a label with
	// that name.
	ErrLabelAlreadyExists = errors.New("label already exists")
)

// ValidationError carries field-level validation messages.
// The empty key is never used; errors not tied to a field go under
// NonFieldErrors.
type ValidationError struct {
	Fields map[string][]string
}

// NonFieldErrors is the key used for messages not attached to one field.
const NonFieldErrors = "non_field_errors"

// NewValidationError creates a ValidationError with a single message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {message}}}
}

// Add appends a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// HasErrors reports whether any message was recorded.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, ", "))
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AsValidationError extracts a *ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
