package validation

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deppfellow/ontology-api/internal/errs"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createRequest struct {
	Acronym string `param:"acronym" validate:"required,acronym"`
	Name    string `json:"name" validate:"required,max=8"`
}

func (r *createRequest) Validate() error {
	return Struct(r)
}

type customRequest struct {
	Terms []string `json:"terms"`
}

func (r *customRequest) Validate() error {
	var ve CustomValidationErrors
	if len(r.Terms) < 2 {
		ve.Add("terms", "input does not contain at least 2 terms")
	}
	return ve.Err()
}

func newContext(t *testing.T, body string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return e.NewContext(req, httptest.NewRecorder())
}

func asHTTPError(t *testing.T, err error) *errs.HTTPError {
	t.Helper()
	var httpErr *errs.HTTPError
	require.True(t, errors.As(err, &httpErr))
	return httpErr
}

func TestBindAndValidateTagErrors(t *testing.T) {
	c := newContext(t, `{"name":"Gene Ontology"}`)
	c.SetParamNames("acronym")
	c.SetParamValues("1GO")

	httpErr := asHTTPError(t, BindAndValidate(c, &createRequest{}))

	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	require.Len(t, httpErr.Errors, 2)
	assert.Equal(t, "acronym", httpErr.Errors[0].Field)
	assert.Equal(t, "name", httpErr.Errors[1].Field)
	assert.Equal(t, "must not exceed 8 characters", httpErr.Errors[1].Error)
}

func TestBindAndValidateSuccess(t *testing.T) {
	c := newContext(t, `{"name":"Gene"}`)
	c.SetParamNames("acronym")
	c.SetParamValues("GO")

	req := &createRequest{}
	require.NoError(t, BindAndValidate(c, req))
	assert.Equal(t, "GO", req.Acronym)
	assert.Equal(t, "Gene", req.Name)
}

func TestBindAndValidateCustomErrors(t *testing.T) {
	c := newContext(t, `{"terms":["a"]}`)

	httpErr := asHTTPError(t, BindAndValidate(c, &customRequest{}))

	assert.Equal(t, "input does not contain at least 2 terms", httpErr.Message)
	assert.Equal(t, []errs.FieldError{{Field: "terms", Error: "input does not contain at least 2 terms"}}, httpErr.Errors)
}

func TestBindAndValidateMalformedBody(t *testing.T) {
	c := newContext(t, `{"name":`)

	httpErr := asHTTPError(t, BindAndValidate(c, &createRequest{}))

	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.NotEmpty(t, httpErr.Message)
}

func TestIsValidAcronym(t *testing.T) {
	for _, ok := range []string{"GO", "NCIT", "a", "SNOMED-CT", "go_plus", "ABCDEFGHIJKLMNOP"} {
		assert.True(t, IsValidAcronym(ok), ok)
	}
	for _, bad := range []string{"", "1GO", "-GO", "GO!", "has space", "ABCDEFGHIJKLMNOPQ"} {
		assert.False(t, IsValidAcronym(bad), bad)
	}
}

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("0190b3c2-6c7e-7b7e-9a1f-2c3d4e5f6a7b"))
	assert.False(t, IsValidUUID("http://data.example.org/mappings/1"))
}
