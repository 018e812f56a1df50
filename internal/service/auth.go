package service

import (
	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/deppfellow/ontology-api/internal/server"
)

// AuthService configures Clerk with the secret key from config. Write routes
// are protected only when a key is set.
type AuthService struct {
	server *server.Server
}

func NewAuthService(s *server.Server) *AuthService {
	if s.Config.Auth.SecretKey != "" {
		clerk.SetKey(s.Config.Auth.SecretKey)
	}
	return &AuthService{
		server: s,
	}
}

// Enabled reports whether requests are authenticated.
func (a *AuthService) Enabled() bool {
	return a.server.Config.Auth.SecretKey != ""
}
