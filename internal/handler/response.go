package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tabishimam2/reciepe-app-api/internal/domain"
)

const (
	detailNotFound = "Not found."
	detailInternal = "Internal server error."
)

// errMalformedBody is returned by decodeJSON for bodies that are not a JSON
// object.
var errMalformedBody = errors.New("malformed request body")

// writeJSON writes v as the JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes a {"detail": ...} body.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeError maps service and domain errors onto HTTP responses.
func writeError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	if verr, ok := domain.AsValidationError(err); ok {
		writeJSON(w, http.StatusBadRequest, verr.Fields)
		return
	}

	var parseErr *bodyError
	switch {
	case errors.As(err, &parseErr):
		writeDetail(w, http.StatusBadRequest, parseErr.detail)
	case errors.Is(err, domain.ErrNotFound):
		writeDetail(w, http.StatusNotFound, detailNotFound)
	default:
		logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeDetail(w, http.StatusInternalServerError, detailInternal)
	}
}

// bodyError is a request body that could not be read as JSON.
type bodyError struct {
	detail string
	err    error
}

func (e *bodyError) Error() string { return e.detail }
func (e *bodyError) Unwrap() error { return e.err }

// decodeJSON reads at most maxBytes of JSON into dst. Problems with a
// single field come back as a *domain.ValidationError keyed by that field;
// anything else is a *bodyError.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return &bodyError{detail: fmt.Sprintf("Unsupported media type %q in request.", ct), err: errMalformedBody}
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if dec.More() {
		return &bodyError{detail: "JSON parse error - trailing data after object.", err: errMalformedBody}
	}
	return nil
}

func decodeError(err error) error {
	var (
		typeErr  *json.UnmarshalTypeError
		maxBytes *http.MaxBytesError
	)
	switch {
	case errors.Is(err, io.EOF):
		// An empty body is an empty object.
		return nil
	case errors.Is(err, domain.ErrInvalidPrice):
		return domain.NewValidationError("price", priceMessage(err))
	case errors.As(err, &typeErr) && typeErr.Field != "":
		field, _, _ := strings.Cut(typeErr.Field, ".")
		return domain.NewValidationError(field, fmt.Sprintf("Incorrect type. Expected %s, but got %s.", typeErr.Type.Kind(), typeErr.Value))
	case errors.As(err, &maxBytes):
		return &bodyError{detail: fmt.Sprintf("Request body exceeds %d bytes.", maxBytes.Limit), err: err}
	default:
		return &bodyError{detail: fmt.Sprintf("JSON parse error - %v", err), err: err}
	}
}

func priceMessage(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "ensure that") {
		_, detail, _ := strings.Cut(msg, "ensure that ")
		return "Ensure that " + detail + "."
	}
	if strings.Contains(msg, "negative") {
		return "Ensure this value is greater than or equal to 0."
	}
	return "A valid number is required."
}
