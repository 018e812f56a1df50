// Package router initializes the HTTP router (using Echo).
//
// It registers the middlewares and defines the API route groups,
// mapping specific paths to their corresponding handlers
package router

import (
	"github.com/deppfellow/ontology-api/internal/handler"
	"github.com/deppfellow/ontology-api/internal/middleware"
	"github.com/deppfellow/ontology-api/internal/server"
	"github.com/deppfellow/ontology-api/internal/service"
	"github.com/labstack/echo/v4"
)

// NewRouter builds the echo instance with the global middleware chain, the
// error handler and every route.
//
// Middleware order matters: the request ID must exist before the New Relic
// attributes and the request logger are built, and the request logger must
// run inside the tracing middleware so its log lines carry trace ids.
func NewRouter(s *server.Server, h *handler.Handlers, services *service.Services) *echo.Echo {
	middlewares := middleware.NewMiddlewares(s)

	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.HTTPErrorHandler = middlewares.Global.GlobalErrorHandler

	router.Use(
		middlewares.Global.CORS(),
		middlewares.Global.Secure(),
		middleware.RequestID(),
		middlewares.Tracing.NewRelicMiddleware(),
		middlewares.Tracing.EnhanceTracing(),
		middlewares.ContextEnhancer.EnhanceContext(),
		middlewares.Metrics.Observe(),
		middlewares.Global.RequestLogger(),
		middlewares.Global.Recover(),
	)

	// Write routes are throttled and, when Clerk is configured, authenticated.
	write := []echo.MiddlewareFunc{
		middlewares.RateLimit.Limit(),
		middlewares.Auth.RequireAuth,
	}

	registerSystemRoutes(router, s, h)
	registerOntologyRoutes(router, h, write)
	registerMappingRoutes(router, h, write)
	registerUserRoutes(router, h, write)

	if services.Auth.Enabled() {
		s.Logger.Info().Msg("authentication enabled on write routes")
	}

	return router
}
