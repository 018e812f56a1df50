// Package validation binds and validates request payloads.
//
// Request types carry validator tags and implement Validatable; rules that
// tags cannot express are reported as CustomValidationErrors so the client
// always receives the same field-level error list.
package validation

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/deppfellow/ontology-api/internal/errs"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validatable is implemented by request payload types that know how to validate themselves.
type Validatable interface {
	Validate() error
}

// CustomValidationError is a single rule violation that a validator tag cannot express.
type CustomValidationError struct {
	Field   string
	Message string
}

// CustomValidationErrors satisfies error. The first message becomes the
// top-level error message returned to the client.
type CustomValidationErrors []CustomValidationError

func (c CustomValidationErrors) Error() string {
	if len(c) == 0 {
		return "Validation failed"
	}
	return c[0].Message
}

// Add appends a violation.
func (c *CustomValidationErrors) Add(field, message string) {
	*c = append(*c, CustomValidationError{Field: field, Message: message})
}

// Err returns c as an error, or nil when nothing was recorded.
func (c CustomValidationErrors) Err() error {
	if len(c) == 0 {
		return nil
	}
	return c
}

var acronymPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,15}$`)

// IsValidAcronym reports whether s can be used as an ontology acronym.
func IsValidAcronym(s string) bool {
	return acronymPattern.MatchString(s)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("acronym", func(fl validator.FieldLevel) bool {
		return IsValidAcronym(fl.Field().String())
	})
	return v
}

// Struct runs the shared validator (with the "acronym" tag registered) against s.
func Struct(s any) error {
	return validate.Struct(s)
}

// StructPartial validates only the named fields of s.
func StructPartial(s any, fields ...string) error {
	return validate.StructPartial(s, fields...)
}

// StructExcept validates every field of s but the named ones.
func StructExcept(s any, fields ...string) error {
	return validate.StructExcept(s, fields...)
}

// BindAndValidate binds path, query and body data into payload and validates it.
// Failures are returned as a 400 *errs.HTTPError.
func BindAndValidate(c echo.Context, payload Validatable) error {
	if err := c.Bind(payload); err != nil {
		return errs.NewBadRequestError(bindErrorMessage(err), false, nil, nil, nil)
	}

	return HTTPError(payload.Validate())
}

// HTTPError turns a validation failure into a 400 *errs.HTTPError listing
// the offending fields. A nil err stays nil.
func HTTPError(err error) error {
	if err == nil {
		return nil
	}
	msg, fieldErrors := extractValidationError(err)
	return errs.NewBadRequestError(msg, true, nil, fieldErrors, nil)
}

func bindErrorMessage(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok && msg != "" {
			return msg
		}
		return http.StatusText(he.Code)
	}
	return "Invalid request payload"
}

func extractValidationError(err error) (string, []errs.FieldError) {
	var customErrors CustomValidationErrors
	if errors.As(err, &customErrors) {
		fieldErrors := make([]errs.FieldError, 0, len(customErrors))
		for _, e := range customErrors {
			fieldErrors = append(fieldErrors, errs.FieldError{Field: e.Field, Error: e.Message})
		}
		return customErrors.Error(), fieldErrors
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error(), []errs.FieldError{}
	}

	fieldErrors := make([]errs.FieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fieldErrors = append(fieldErrors, errs.FieldError{
			Field: lowerFirst(fe.Field()),
			Error: tagMessage(fe),
		})
	}

	return "Validation failed", fieldErrors
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Type().Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Type().Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", fe.Param())
		}
		return fmt.Sprintf("must not exceed %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "url", "uri", "http_url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	case "acronym":
		return "must start with a letter and contain at most 16 letters, digits, '-' or '_'"
	case "dive":
		return "some items are invalid"
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s: %s:%s", lowerFirst(fe.Field()), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s: %s", lowerFirst(fe.Field()), fe.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValidUUID checks UUID format only, not version or variant.
func IsValidUUID(uuid string) bool {
	return uuidRegex.MatchString(uuid)
}
