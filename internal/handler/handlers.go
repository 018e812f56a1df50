package handler

import (
	"github.com/deppfellow/ontology-api/internal/server"
	"github.com/deppfellow/ontology-api/internal/service"
)

// Handlers groups every HTTP handler so the router receives one value.
type Handlers struct {
	Health   *HealthHandler
	OpenAPI  *OpenAPIHandler
	Ontology *OntologyHandler
	Mapping  *MappingHandler
	Stats    *StatsHandler
	User     *UserHandler
}

func NewHandlers(s *server.Server, services *service.Services) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(s),
		OpenAPI:  NewOpenAPIHandler(s),
		Ontology: NewOntologyHandler(s, services.Ontology),
		Mapping:  NewMappingHandler(s, services.Mapping),
		Stats:    NewStatsHandler(s, services.Mapping),
		User:     NewUserHandler(s, services.User),
	}
}
