package router

import (
	"net/http"

	"github.com/deppfellow/ontology-api/internal/handler"
	"github.com/labstack/echo/v4"
)

func registerMappingRoutes(r *echo.Echo, h *handler.Handlers, write []echo.MiddlewareFunc) {
	m := h.Mapping
	st := h.Stats
	g := r.Group("/mappings")

	g.GET("", m.NotAllowed("To traverse all mappings one should traverse all mappings by ontology."))
	g.POST("", handler.Handle(m.Handler, m.Create, http.StatusCreated, &handler.CreateMappingRequest{}), write...)

	stats := g.Group("/statistics")
	stats.GET("/recent", handler.Handle(st.Handler, st.Recent, http.StatusOK, &handler.RecentMappingsRequest{}))
	stats.GET("/ontologies", handler.Handle(st.Handler, st.Ontologies, http.StatusOK, &handler.EmptyRequest{}))
	stats.GET("/ontologies/:acronym", handler.Handle(st.Handler, st.Ontology, http.StatusOK, &handler.AcronymRequest{}))
	stats.GET("/ontologies/:acronym/popular_classes", handler.Handle(st.Handler, st.PopularClasses, http.StatusOK, &handler.OntologyStatsRequest{}))
	stats.GET("/ontologies/:acronym/users", handler.Handle(st.Handler, st.Users, http.StatusOK, &handler.OntologyStatsRequest{}))

	g.GET("/:mapping", handler.Handle(m.Handler, m.Get, http.StatusOK, &handler.MappingRequest{}))
	g.PUT("/:mapping", m.NotAllowed("put is not supported for mappings"))
	g.PATCH("/:mapping", m.NotAllowed("patch is not supported for mappings"))
	g.DELETE("/:mapping", handler.HandleNoContent(m.Handler, m.Delete, http.StatusNoContent, &handler.MappingRequest{}), write...)
}
