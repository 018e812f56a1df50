package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveRequestID(t *testing.T, header string) (string, string) {
	t.Helper()

	e := echo.New()
	var seen string
	e.GET("/", func(c echo.Context) error {
		seen = GetRequestID(c)
		return c.NoContent(http.StatusNoContent)
	}, RequestID())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(RequestIDHeader, header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	return seen, rec.Header().Get(RequestIDHeader)
}

func TestRequestIDReusesHeader(t *testing.T) {
	seen, echoed := serveRequestID(t, "abc-123")
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", echoed)
}

func TestRequestIDReplacesUnusableHeader(t *testing.T) {
	for name, header := range map[string]string{
		"missing":   "",
		"too long":  strings.Repeat("a", maxRequestIDLength+1),
		"line feed": "abc\nlevel=error",
		"space":     "a b",
	} {
		t.Run(name, func(t *testing.T) {
			seen, echoed := serveRequestID(t, header)
			assert.Equal(t, seen, echoed)

			id, err := uuid.Parse(seen)
			require.NoError(t, err)
			assert.Equal(t, uuid.Version(7), id.Version())
		})
	}
}
