package handler

import (
	"github.com/deppfellow/ontology-api/internal/model"
	"github.com/deppfellow/ontology-api/internal/server"
	"github.com/deppfellow/ontology-api/internal/service"
	"github.com/deppfellow/ontology-api/internal/validation"
	"github.com/labstack/echo/v4"
)

// StatsHandler serves the mapping statistics. Counts are read through the
// statistics cache of the mapping service.
type StatsHandler struct {
	Handler
	mappings *service.MappingService
}

func NewStatsHandler(s *server.Server, mappings *service.MappingService) *StatsHandler {
	return &StatsHandler{
		Handler:  NewHandler(s),
		mappings: mappings,
	}
}

type RecentMappingsRequest struct {
	Size int `query:"size" json:"-" validate:"gte=0"`
}

func (r *RecentMappingsRequest) Validate() error {
	return validation.Struct(r)
}

type OntologyStatsRequest struct {
	Acronym string `param:"acronym" json:"-" validate:"required"`
	Size    int    `query:"size" json:"-" validate:"gte=0"`
}

func (r *OntologyStatsRequest) Validate() error {
	return validation.Struct(r)
}

func (h *StatsHandler) Recent(c echo.Context, req *RecentMappingsRequest) ([]model.Mapping, error) {
	return h.mappings.Recent(c.Request().Context(), req.Size)
}

func (h *StatsHandler) Ontologies(c echo.Context, req *EmptyRequest) (map[string]int, error) {
	return h.mappings.OntologyCounts(c.Request().Context())
}

func (h *StatsHandler) Ontology(c echo.Context, req *AcronymRequest) (map[string]int, error) {
	return h.mappings.CountsBetween(c.Request().Context(), req.Acronym)
}

func (h *StatsHandler) PopularClasses(c echo.Context, req *OntologyStatsRequest) (map[string]int, error) {
	return h.mappings.PopularClasses(c.Request().Context(), req.Acronym, req.Size)
}

func (h *StatsHandler) Users(c echo.Context, req *OntologyStatsRequest) (map[string]int, error) {
	return h.mappings.TopCreators(c.Request().Context(), req.Acronym, req.Size)
}
