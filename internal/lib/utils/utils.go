// Package utils contains small helpers used across the project that don't
// belong to a specific domain.
package utils

import (
	"net/url"
	"strings"
)

// IsHTTPURI reports whether s is an absolute http or https URI with a host.
func IsHTTPURI(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsAbsoluteURI reports whether s parses as a URI with a scheme.
func IsAbsoluteURI(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.IsAbs() && (u.Host != "" || u.Opaque != "")
}

// LastSegment returns the last non-empty path segment of an http(s) URI,
// e.g. "http://host/ontologies/GO/" -> "GO". Any other value is returned
// unchanged, so callers can accept either a URI or a bare identifier.
func LastSegment(s string) string {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return s
	}
	trimmed := strings.TrimRight(s, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// Deref returns the value s points to, or "" when s is nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
