package router

import (
	"net/http"

	"github.com/deppfellow/ontology-api/internal/handler"
	"github.com/labstack/echo/v4"
)

func registerUserRoutes(r *echo.Echo, h *handler.Handlers, write []echo.MiddlewareFunc) {
	u := h.User
	g := r.Group("/users")

	g.GET("", handler.Handle(u.Handler, u.List, http.StatusOK, &handler.EmptyRequest{}))
	g.GET("/:username", handler.Handle(u.Handler, u.Get, http.StatusOK, &handler.UserRequest{}))
	g.PUT("/:username", handler.Handle(u.Handler, u.Create, http.StatusCreated, &handler.CreateUserRequest{}), write...)
}
