package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *HTTPError
		status int
		code   string
	}{
		{"unauthorized", NewUnauthorizedError("nope", false), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", NewForbiddenError("nope", false), http.StatusForbidden, "FORBIDDEN"},
		{"bad request", BadRequestf("Ontology with ID `%s` not found", "GO"), http.StatusBadRequest, "BAD_REQUEST"},
		{"not found", NotFoundf("Mapping with id `%s` not found", "x"), http.StatusNotFound, "NOT_FOUND"},
		{"method not allowed", NewMethodNotAllowedError("patch is not supported for mappings"), http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{"too many requests", NewTooManyRequestsError("slow down"), http.StatusTooManyRequests, "TOO_MANY_REQUESTS"},
		{"internal", NewInternalServerError(), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.code, tt.err.Code)
		})
	}

	assert.Equal(t, "Ontology with ID `GO` not found", BadRequestf("Ontology with ID `%s` not found", "GO").Message)
}

func TestBadRequestCustomCode(t *testing.T) {
	code := "ONTOLOGY_ALREADY_EXISTS"
	fieldErrors := []FieldError{{Field: "acronym", Error: "is required"}}

	err := NewBadRequestError("exists", true, &code, fieldErrors, nil)

	assert.Equal(t, code, err.Code)
	assert.Equal(t, fieldErrors, err.Errors)
	assert.True(t, err.Override)
}

func TestHTTPErrorIsAndAs(t *testing.T) {
	wrapped := fmt.Errorf("loading ontology: %w", NotFoundf("missing"))

	assert.True(t, errors.Is(wrapped, &HTTPError{}))

	var httpErr *HTTPError
	assert.True(t, errors.As(wrapped, &httpErr))
	assert.Equal(t, "missing", httpErr.Error())
}

func TestWithMessageCopies(t *testing.T) {
	base := NewNotFoundError("original", false, nil)
	changed := base.WithMessage("changed")

	assert.Equal(t, "original", base.Message)
	assert.Equal(t, "changed", changed.Message)
	assert.Equal(t, base.Status, changed.Status)
}
