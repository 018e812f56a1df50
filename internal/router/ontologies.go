package router

import (
	"net/http"

	"github.com/deppfellow/ontology-api/internal/handler"
	"github.com/labstack/echo/v4"
)

func registerOntologyRoutes(r *echo.Echo, h *handler.Handlers, write []echo.MiddlewareFunc) {
	o := h.Ontology
	m := h.Mapping
	g := r.Group("/ontologies")

	g.GET("", handler.Handle(o.Handler, o.List, http.StatusOK, &handler.ListOntologiesRequest{}))
	g.GET("/:acronym", handler.Handle(o.Handler, o.Get, http.StatusOK, &handler.OntologyRequest{}))
	g.PUT("/:acronym", handler.Handle(o.Handler, o.Create, http.StatusCreated, &handler.CreateOntologyRequest{}), write...)
	g.PATCH("/:acronym", handler.HandleNoContent(o.Handler, o.Patch, http.StatusNoContent, &handler.PatchOntologyRequest{}), write...)
	g.DELETE("/:acronym", handler.HandleNoContent(o.Handler, o.Delete, http.StatusNoContent, &handler.AcronymRequest{}), write...)

	g.GET("/:acronym/submissions", handler.Handle(o.Handler, o.ListSubmissions, http.StatusOK, &handler.AcronymRequest{}))
	g.POST("/:acronym/submissions", handler.Handle(o.Handler, o.CreateSubmission, http.StatusCreated, &handler.CreateSubmissionRequest{}), write...)
	g.PATCH("/:acronym/:ontology_submission_id", handler.HandleNoContent(o.Handler, o.PatchSubmission, http.StatusNoContent, &handler.PatchSubmissionRequest{}), write...)
	g.DELETE("/:acronym/:ontology_submission_id", handler.HandleNoContent(o.Handler, o.DeleteSubmission, http.StatusNoContent, &handler.SubmissionRequest{}), write...)

	g.GET("/:acronym/download", handler.HandleFile(o.Handler, o.Download, &handler.OntologyRequest{}))
	g.GET("/:acronym/properties", handler.Handle(o.Handler, o.Properties, http.StatusOK, &handler.AcronymRequest{}))
	g.GET("/:acronym/classes", handler.Handle(o.Handler, o.Classes, http.StatusOK, &handler.ListClassesRequest{}))
	g.GET("/:acronym/classes/:cls", handler.Handle(o.Handler, o.Class, http.StatusOK, &handler.ClassRequest{}))

	// Mappings scoped to an ontology live under the ontology routes.
	g.GET("/:acronym/classes/:cls/mappings", handler.Handle(m.Handler, m.ForClass, http.StatusOK, &handler.ClassRequest{}))
	g.GET("/:acronym/mappings", handler.Handle(m.Handler, m.ForOntology, http.StatusOK, &handler.OntologyMappingsRequest{}))
}
