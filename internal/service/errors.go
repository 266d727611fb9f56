// Package service provides business logic services for the recipe API.
package service

import "errors"

// Common service errors. Domain errors (not found, validation, conflicts)
// live in the domain package; this file holds service-level failures.
var (
	// ErrInternalError wraps infrastructure failures that callers cannot fix.
	ErrInternalError = errors.New("internal server error")
)

// Field messages reported inside domain.ValidationError.
const (
	msgRequired     = "This field is required."
	msgBlank        = "This field may not be blank."
	msgInvalidEmail = "Enter a valid email address."
	msgEmailTaken   = "user with this email already exists."
	msgNameTaken    = "You already have an item with this name."
	msgNegative     = "Ensure this value is greater than or equal to 0."
	msgInvalidImage = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
)

// maxCharLength bounds every short text column.
const maxCharLength = 255
