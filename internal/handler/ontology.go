package handler

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/deppfellow/ontology-api/internal/model"
	"github.com/deppfellow/ontology-api/internal/server"
	"github.com/deppfellow/ontology-api/internal/service"
	"github.com/deppfellow/ontology-api/internal/validation"
	"github.com/labstack/echo/v4"
)

// OntologyHandler serves ontologies, their submissions, files, classes and
// properties.
type OntologyHandler struct {
	Handler
	ontologies *service.OntologyService
}

func NewOntologyHandler(s *server.Server, ontologies *service.OntologyService) *OntologyHandler {
	return &OntologyHandler{
		Handler:    NewHandler(s),
		ontologies: ontologies,
	}
}

// ---------------- Requests --------------------------------------------------

type ListOntologiesRequest struct {
	Include string `query:"include" json:"-"`
}

func (r *ListOntologiesRequest) Validate() error {
	return nil
}

// OntologyRequest addresses an ontology, optionally narrowed to one
// submission with ?ontology_submission_id=.
type OntologyRequest struct {
	Acronym      string `param:"acronym" json:"-" validate:"required"`
	SubmissionID string `query:"ontology_submission_id" json:"-"`

	submissionID *int
}

func (r *OntologyRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}

	var errs validation.CustomValidationErrors
	r.submissionID = parseOptionalID("ontology_submission_id", r.SubmissionID, &errs)
	return errs.Err()
}

// SubmissionBody is the submission metadata accepted on creation, as JSON,
// urlencoded or multipart form fields.
type SubmissionBody struct {
	HasOntologyLanguage string `form:"hasOntologyLanguage" json:"hasOntologyLanguage"`
	PullLocation        string `form:"pullLocation" json:"pullLocation"`
	Description         string `form:"description" json:"description"`
	Version             string `form:"version" json:"version"`
	Homepage            string `form:"homepage" json:"homepage"`
	Documentation       string `form:"documentation" json:"documentation"`
	Publication         string `form:"publication" json:"publication"`
	ContactName         string `form:"contactName" json:"contactName"`
	ContactEmail        string `form:"contactEmail" json:"contactEmail" validate:"omitempty,email"`
	Released            string `form:"released" json:"released"`

	released *time.Time
}

func (b *SubmissionBody) parse() error {
	var errs validation.CustomValidationErrors
	b.released = parseReleased(b.Released, &errs)
	return errs.Err()
}

func (b *SubmissionBody) fields() service.SubmissionFields {
	return service.SubmissionFields{
		HasOntologyLanguage: optional(b.HasOntologyLanguage),
		PullLocation:        optional(b.PullLocation),
		Description:         optional(b.Description),
		Version:             optional(b.Version),
		Homepage:            optional(b.Homepage),
		Documentation:       optional(b.Documentation),
		Publication:         optional(b.Publication),
		ContactName:         optional(b.ContactName),
		ContactEmail:        optional(b.ContactEmail),
		Released:            b.released,
	}
}

// CreateOntologyRequest creates an ontology and its first submission. Only
// the acronym is validated up front; the body is checked once the acronym is
// known to be free.
type CreateOntologyRequest struct {
	Acronym            string   `param:"acronym" json:"-" validate:"required,acronym"`
	Name               string   `form:"name" json:"name" validate:"required"`
	AdministeredBy     []string `form:"administeredBy" json:"administeredBy" validate:"required,min=1,dive,required"`
	SummaryOnly        bool     `form:"summaryOnly" json:"summaryOnly"`
	Flat               bool     `form:"flat" json:"flat"`
	ViewingRestriction string   `form:"viewingRestriction" json:"viewingRestriction"`

	SubmissionBody
}

func (r *CreateOntologyRequest) Validate() error {
	return validation.StructPartial(r, "Acronym")
}

func (r *CreateOntologyRequest) validateBody() error {
	if err := validation.StructExcept(r, "Acronym"); err != nil {
		return err
	}
	return r.SubmissionBody.parse()
}

type CreateSubmissionRequest struct {
	Acronym string `param:"acronym" json:"-" validate:"required"`

	SubmissionBody
}

func (r *CreateSubmissionRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	return r.SubmissionBody.parse()
}

// PatchOntologyRequest updates only the fields present in the JSON body.
type PatchOntologyRequest struct {
	Acronym            string   `param:"acronym" json:"-" validate:"required"`
	Name               *string  `json:"name" validate:"omitempty,min=1"`
	AdministeredBy     []string `json:"administeredBy" validate:"omitempty,dive,required"`
	SummaryOnly        *bool    `json:"summaryOnly"`
	Flat               *bool    `json:"flat"`
	ViewingRestriction *string  `json:"viewingRestriction"`
}

func (r *PatchOntologyRequest) Validate() error {
	return validation.Struct(r)
}

// PatchSubmissionRequest updates only the fields present in the JSON body.
type PatchSubmissionRequest struct {
	Acronym      string `param:"acronym" json:"-" validate:"required"`
	SubmissionID int    `param:"ontology_submission_id" json:"-" validate:"min=1"`

	HasOntologyLanguage *string `json:"hasOntologyLanguage" validate:"omitempty,min=1"`
	PullLocation        *string `json:"pullLocation" validate:"omitempty,http_url"`
	Description         *string `json:"description"`
	Version             *string `json:"version"`
	Homepage            *string `json:"homepage"`
	Documentation       *string `json:"documentation"`
	Publication         *string `json:"publication"`
	ContactName         *string `json:"contactName"`
	ContactEmail        *string `json:"contactEmail" validate:"omitempty,email"`
	Released            *string `json:"released"`

	released *time.Time
}

func (r *PatchSubmissionRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}

	var errs validation.CustomValidationErrors
	if r.Released != nil {
		r.released = parseReleased(*r.Released, &errs)
	}
	return errs.Err()
}

// SubmissionRequest addresses one submission through the path.
type SubmissionRequest struct {
	Acronym      string `param:"acronym" json:"-" validate:"required"`
	SubmissionID int    `param:"ontology_submission_id" json:"-" validate:"min=1"`
}

func (r *SubmissionRequest) Validate() error {
	return validation.Struct(r)
}

type ListClassesRequest struct {
	Acronym string `param:"acronym" json:"-" validate:"required"`

	PageRequest
}

func (r *ListClassesRequest) Validate() error {
	return validation.Struct(r)
}

// ClassRequest addresses a class by its URL-encoded URI.
type ClassRequest struct {
	Acronym string `param:"acronym" json:"-" validate:"required"`
	Class   string `param:"cls" json:"-" validate:"required"`

	classID string
}

func (r *ClassRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}

	var errs validation.CustomValidationErrors
	r.classID = unescapeURI("cls", r.Class, &errs)
	return errs.Err()
}

// ---------------- Handlers --------------------------------------------------

func (h *OntologyHandler) List(c echo.Context, req *ListOntologiesRequest) (any, error) {
	return h.ontologies.List(c.Request().Context(), req.Include != "")
}

func (h *OntologyHandler) Get(c echo.Context, req *OntologyRequest) (any, error) {
	return h.ontologies.Get(c.Request().Context(), req.Acronym, req.submissionID)
}

func (h *OntologyHandler) ListSubmissions(c echo.Context, req *AcronymRequest) ([]model.Submission, error) {
	return h.ontologies.ListSubmissions(c.Request().Context(), req.Acronym)
}

// firstUpload opens the first file part of a multipart request, taking
// field names in lexical order. It returns nil when there is none.
func firstUpload(c echo.Context) (*service.Upload, func(), error) {
	noop := func() {}

	form := c.Request().MultipartForm
	if form == nil {
		return nil, noop, nil
	}

	for _, field := range slices.Sorted(maps.Keys(form.File)) {
		headers := form.File[field]
		if len(headers) == 0 {
			continue
		}

		f, err := headers[0].Open()
		if err != nil {
			return nil, noop, fmt.Errorf("opening upload %q: %w", headers[0].Filename, err)
		}
		return &service.Upload{Filename: headers[0].Filename, Reader: f}, func() { _ = f.Close() }, nil
	}

	return nil, noop, nil
}

func (h *OntologyHandler) Create(c echo.Context, req *CreateOntologyRequest) (*model.Submission, error) {
	if err := h.ontologies.EnsureNew(c.Request().Context(), req.Acronym); err != nil {
		return nil, err
	}
	if err := validation.HTTPError(req.validateBody()); err != nil {
		return nil, err
	}

	upload, closeUpload, err := firstUpload(c)
	if err != nil {
		return nil, err
	}
	defer closeUpload()

	fields := service.OntologyFields{
		Name:               &req.Name,
		AdministeredBy:     req.AdministeredBy,
		SummaryOnly:        &req.SummaryOnly,
		Flat:               &req.Flat,
		ViewingRestriction: optional(req.ViewingRestriction),
	}

	return h.ontologies.Create(c.Request().Context(), req.Acronym, fields, req.SubmissionBody.fields(), upload)
}

func (h *OntologyHandler) CreateSubmission(c echo.Context, req *CreateSubmissionRequest) (*model.Submission, error) {
	upload, closeUpload, err := firstUpload(c)
	if err != nil {
		return nil, err
	}
	defer closeUpload()

	return h.ontologies.CreateSubmission(c.Request().Context(), req.Acronym, req.SubmissionBody.fields(), upload)
}

func (h *OntologyHandler) Patch(c echo.Context, req *PatchOntologyRequest) error {
	return h.ontologies.PatchOntology(c.Request().Context(), req.Acronym, service.OntologyFields{
		Name:               req.Name,
		AdministeredBy:     req.AdministeredBy,
		SummaryOnly:        req.SummaryOnly,
		Flat:               req.Flat,
		ViewingRestriction: req.ViewingRestriction,
	})
}

func (h *OntologyHandler) PatchSubmission(c echo.Context, req *PatchSubmissionRequest) error {
	return h.ontologies.PatchSubmission(c.Request().Context(), req.Acronym, req.SubmissionID, service.SubmissionFields{
		HasOntologyLanguage: req.HasOntologyLanguage,
		PullLocation:        req.PullLocation,
		Description:         req.Description,
		Version:             req.Version,
		Homepage:            req.Homepage,
		Documentation:       req.Documentation,
		Publication:         req.Publication,
		ContactName:         req.ContactName,
		ContactEmail:        req.ContactEmail,
		Released:            req.released,
	})
}

func (h *OntologyHandler) Delete(c echo.Context, req *AcronymRequest) error {
	return h.ontologies.Delete(c.Request().Context(), req.Acronym)
}

func (h *OntologyHandler) DeleteSubmission(c echo.Context, req *SubmissionRequest) error {
	return h.ontologies.DeleteSubmission(c.Request().Context(), req.Acronym, req.SubmissionID)
}

func (h *OntologyHandler) Download(c echo.Context, req *OntologyRequest) (*service.FileResult, error) {
	return h.ontologies.Download(c.Request().Context(), req.Acronym, req.submissionID)
}

func (h *OntologyHandler) Properties(c echo.Context, req *AcronymRequest) ([]model.Property, error) {
	return h.ontologies.Properties(c.Request().Context(), req.Acronym)
}

func (h *OntologyHandler) Classes(c echo.Context, req *ListClassesRequest) (*model.Page[model.Class], error) {
	return h.ontologies.Classes(c.Request().Context(), req.Acronym, req.Page, req.PageSize)
}

func (h *OntologyHandler) Class(c echo.Context, req *ClassRequest) (*model.Class, error) {
	return h.ontologies.Class(c.Request().Context(), req.Acronym, req.classID)
}
