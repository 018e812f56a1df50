package router

import (
	"github.com/deppfellow/ontology-api/internal/handler"
	"github.com/deppfellow/ontology-api/internal/server"
	"github.com/labstack/echo/v4"
)

// registerSystemRoutes registers the endpoints that are not part of the
// repository API: health status, Prometheus metrics, static assets and the
// documentation UI.
func registerSystemRoutes(r *echo.Echo, s *server.Server, h *handler.Handlers) {
	r.GET("/status", h.Health.CheckHealth)

	if s.Metrics != nil && s.Config.Observability.Metrics.Enabled {
		r.GET(s.Config.Observability.Metrics.Path, echo.WrapHandler(s.Metrics.Handler()))
	}

	r.Static("/static", handler.StaticDir)

	r.GET("/docs", h.OpenAPI.ServeOpenAPIUI)
}
