package handler

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/deppfellow/ontology-api/internal/errs"
	"github.com/deppfellow/ontology-api/internal/model"
	"github.com/deppfellow/ontology-api/internal/server"
	"github.com/deppfellow/ontology-api/internal/service"
	"github.com/deppfellow/ontology-api/internal/validation"
	"github.com/labstack/echo/v4"
)

type MappingHandler struct {
	Handler
	mappings *service.MappingService
}

func NewMappingHandler(s *server.Server, mappings *service.MappingService) *MappingHandler {
	return &MappingHandler{
		Handler:  NewHandler(s),
		mappings: mappings,
	}
}

// ---------------- Requests --------------------------------------------------

type OntologyMappingsRequest struct {
	Acronym string `param:"acronym" json:"-" validate:"required"`

	PageRequest
}

func (r *OntologyMappingsRequest) Validate() error {
	return validation.Struct(r)
}

// MappingRequest addresses a mapping by UUID or by its URL-encoded URI.
type MappingRequest struct {
	Mapping string `param:"mapping" json:"-" validate:"required"`

	id string
}

func (r *MappingRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}

	var errs validation.CustomValidationErrors
	r.id = unescapeURI("mapping", r.Mapping, &errs)
	return errs.Err()
}

// MappingTermRequest is one side of a new mapping. Term is kept raw so a
// non-array value can be reported as such.
type MappingTermRequest struct {
	Ontology string          `json:"ontology"`
	Term     json.RawMessage `json:"term"`
}

type CreateMappingRequest struct {
	Terms      []MappingTermRequest `json:"terms"`
	Relation   string               `json:"relation"`
	Creator    string               `json:"creator"`
	Source     *string              `json:"source"`
	SourceName *string              `json:"source_name"`
	Comment    *string              `json:"comment"`

	terms []service.TermInput
}

func invalidMapping(field, message string) error {
	var errs validation.CustomValidationErrors
	errs.Add(field, message)
	return errs
}

// Validate checks the structure of the mapping in a fixed order and reports
// only the first problem found.
func (r *CreateMappingRequest) Validate() error {
	switch {
	case r.Terms == nil:
		return invalidMapping("terms", "Input does not contain terms")
	case len(r.Terms) < 2:
		return invalidMapping("terms", "Input does not contain at least 2 terms")
	case r.Relation == "":
		return invalidMapping("relation", "Input does not contain mapping relation")
	case r.Creator == "":
		return invalidMapping("creator", "Input does not contain user creator ID")
	}

	r.terms = make([]service.TermInput, 0, len(r.Terms))
	for i, t := range r.Terms {
		field := fmt.Sprintf("terms[%d]", i)

		raw := bytes.TrimSpace(t.Term)
		if t.Ontology == "" || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return invalidMapping(field, "Every term must have at least one term ID and a ontology ID or acronym")
		}

		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			return invalidMapping(field+".term", "Term IDs must be contained in arrays")
		}
		if len(ids) == 0 {
			return invalidMapping(field, "Every term must have at least one term ID and a ontology ID or acronym")
		}

		r.terms = append(r.terms, service.TermInput{Ontology: t.Ontology, Terms: ids})
	}

	return nil
}

// ---------------- Handlers --------------------------------------------------

func (h *MappingHandler) ForClass(c echo.Context, req *ClassRequest) ([]model.Mapping, error) {
	return h.mappings.ForClass(c.Request().Context(), req.Acronym, req.classID)
}

func (h *MappingHandler) ForOntology(c echo.Context, req *OntologyMappingsRequest) (*model.Page[model.Mapping], error) {
	return h.mappings.ForOntology(c.Request().Context(), req.Acronym, req.Page, req.PageSize)
}

func (h *MappingHandler) Get(c echo.Context, req *MappingRequest) (*model.Mapping, error) {
	return h.mappings.Get(c.Request().Context(), req.id)
}

func (h *MappingHandler) Create(c echo.Context, req *CreateMappingRequest) (*model.Mapping, error) {
	return h.mappings.Create(c.Request().Context(), service.MappingInput{
		Terms:      req.terms,
		Relation:   req.Relation,
		Creator:    req.Creator,
		Source:     req.Source,
		SourceName: req.SourceName,
		Comment:    req.Comment,
	})
}

func (h *MappingHandler) Delete(c echo.Context, req *MappingRequest) error {
	return h.mappings.Delete(c.Request().Context(), req.id)
}

// NotAllowed answers 405 with message for operations mappings do not support.
func (h *MappingHandler) NotAllowed(message string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return errs.NewMethodNotAllowedError(message)
	}
}
