package middleware

import (
	"time"

	"github.com/deppfellow/ontology-api/internal/server"
	"github.com/labstack/echo/v4"
)

// MetricsMiddleware records request counts and latencies in Prometheus,
// labelled by route template rather than raw URI.
type MetricsMiddleware struct {
	server *server.Server
}

func NewMetricsMiddleware(s *server.Server) *MetricsMiddleware {
	return &MetricsMiddleware{server: s}
}

func (m *MetricsMiddleware) Observe() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.server.Metrics.ObserveRequest(c.Request().Method, route, responseStatus(c, err), time.Since(start))

			return err
		}
	}
}
