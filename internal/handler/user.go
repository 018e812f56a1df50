package handler

import (
	"github.com/deppfellow/ontology-api/internal/model"
	"github.com/deppfellow/ontology-api/internal/server"
	"github.com/deppfellow/ontology-api/internal/service"
	"github.com/deppfellow/ontology-api/internal/validation"
	"github.com/labstack/echo/v4"
)

type UserHandler struct {
	Handler
	users *service.UserService
}

func NewUserHandler(s *server.Server, users *service.UserService) *UserHandler {
	return &UserHandler{
		Handler: NewHandler(s),
		users:   users,
	}
}

type UserRequest struct {
	Username string `param:"username" json:"-" validate:"required"`
}

func (r *UserRequest) Validate() error {
	return validation.Struct(r)
}

type CreateUserRequest struct {
	Username string `param:"username" json:"-" validate:"required,max=64"`
	Email    string `form:"email" json:"email" validate:"omitempty,email"`
}

func (r *CreateUserRequest) Validate() error {
	return validation.Struct(r)
}

func (h *UserHandler) List(c echo.Context, req *EmptyRequest) ([]model.User, error) {
	return h.users.List(c.Request().Context())
}

func (h *UserHandler) Get(c echo.Context, req *UserRequest) (*model.User, error) {
	return h.users.Get(c.Request().Context(), req.Username)
}

func (h *UserHandler) Create(c echo.Context, req *CreateUserRequest) (*model.User, error) {
	return h.users.Create(c.Request().Context(), req.Username, optional(req.Email))
}
