package service

import (
	"context"

	"github.com/deppfellow/ontology-api/internal/errs"
	"github.com/deppfellow/ontology-api/internal/model"
	"github.com/deppfellow/ontology-api/internal/server"
	"github.com/deppfellow/ontology-api/internal/sqlerr"
)

type UserService struct {
	server *server.Server
	users  UserRepository
}

func NewUserService(s *server.Server, users UserRepository) *UserService {
	return &UserService{server: s, users: users}
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.users.ListUsers(ctx)
}

func (s *UserService) Get(ctx context.Context, username string) (*model.User, error) {
	u, err := s.users.GetUser(ctx, username)
	if sqlerr.IsNotFound(err) {
		return nil, errs.NotFoundf("User with username `%s` not found", username)
	}
	return u, err
}

func (s *UserService) Create(ctx context.Context, username string, email *string) (*model.User, error) {
	u := &model.User{
		ID:       model.UserURI(s.server.Config.Repository.BaseURI, username),
		Username: username,
		Email:    email,
	}

	err := s.users.CreateUser(ctx, u)
	if sqlerr.IsUniqueViolation(err) {
		return nil, errs.BadRequestf("User `%s` already exists", username)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
