package handler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/deppfellow/ontology-api/internal/validation"
)

// EmptyRequest is the payload of routes that take no input.
type EmptyRequest struct{}

func (r *EmptyRequest) Validate() error {
	return nil
}

// AcronymRequest addresses one ontology.
type AcronymRequest struct {
	Acronym string `param:"acronym" json:"-" validate:"required"`
}

func (r *AcronymRequest) Validate() error {
	return validation.Struct(r)
}

// PageRequest carries the page and pagesize query parameters. Missing or
// out of range values are normalised by the services.
type PageRequest struct {
	Page     int `query:"page" json:"-"`
	PageSize int `query:"pagesize" json:"-"`
}

// optional maps an empty form value to nil.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// parseOptionalID parses a positive integer query value; "" yields nil.
func parseOptionalID(field, value string, errs *validation.CustomValidationErrors) *int {
	if value == "" {
		return nil
	}

	id, err := strconv.Atoi(value)
	if err != nil || id < 1 {
		errs.Add(field, fmt.Sprintf("%s must be a positive integer", field))
		return nil
	}
	return &id
}

// parseReleased accepts a date (2006-01-02) or an RFC 3339 timestamp.
func parseReleased(value string, errs *validation.CustomValidationErrors) *time.Time {
	if value == "" {
		return nil
	}

	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}

	errs.Add("released", "released must be a date (YYYY-MM-DD)")
	return nil
}

// unescapeURI decodes a URI passed as a single path segment.
func unescapeURI(field, value string, errs *validation.CustomValidationErrors) string {
	decoded, err := url.PathUnescape(value)
	if err != nil || decoded == "" {
		errs.Add(field, fmt.Sprintf("%s must be a URL-encoded URI", field))
		return ""
	}
	return decoded
}
