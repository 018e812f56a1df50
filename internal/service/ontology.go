package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/deppfellow/ontology-api/internal/errs"
	"github.com/deppfellow/ontology-api/internal/lib/job"
	"github.com/deppfellow/ontology-api/internal/lib/parser"
	"github.com/deppfellow/ontology-api/internal/lib/storage"
	"github.com/deppfellow/ontology-api/internal/lib/utils"
	"github.com/deppfellow/ontology-api/internal/model"
	"github.com/deppfellow/ontology-api/internal/server"
	"github.com/deppfellow/ontology-api/internal/sqlerr"
)

// Upload is a file received with a submission.
type Upload struct {
	Filename string
	Reader   io.Reader
}

// OntologyFields carries the ontology attributes a request supplied. Nil
// fields are left untouched by a patch.
type OntologyFields struct {
	Name               *string
	AdministeredBy     []string
	SummaryOnly        *bool
	Flat               *bool
	ViewingRestriction *string
}

// SubmissionFields carries the submission attributes a request supplied. Nil
// fields are left untouched by a patch.
type SubmissionFields struct {
	HasOntologyLanguage *string
	PullLocation        *string
	Description         *string
	Version             *string
	Homepage            *string
	Documentation       *string
	Publication         *string
	ContactName         *string
	ContactEmail        *string
	Released            *time.Time
}

// FileResult is a stored file opened for streaming. The caller closes Reader.
type FileResult struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.ReadCloser
}

type OntologyService struct {
	server   *server.Server
	stores   Stores
	enqueuer TaskEnqueuer
	mappings *MappingService
	client   *http.Client
}

func NewOntologyService(s *server.Server, stores Stores, enqueuer TaskEnqueuer, mappings *MappingService) *OntologyService {
	return &OntologyService{
		server:   s,
		stores:   stores,
		enqueuer: enqueuer,
		mappings: mappings,
		client:   &http.Client{Timeout: s.Config.Repository.PullTimeout},
	}
}

func ontologyNotFound(acronym string) error {
	return errs.NotFoundf("Ontology with acronym `%s` not found", acronym)
}

func (s *OntologyService) getOntology(ctx context.Context, acronym string) (*model.Ontology, error) {
	o, err := s.stores.Ontologies.GetOntology(ctx, acronym)
	if sqlerr.IsNotFound(err) {
		return nil, ontologyNotFound(acronym)
	}
	return o, err
}

// List returns every ontology, or with include the latest parsed submission
// of every ontology that has one.
func (s *OntologyService) List(ctx context.Context, include bool) (any, error) {
	if include {
		return s.stores.Submissions.LatestSubmissions(ctx)
	}
	return s.stores.Ontologies.ListOntologies(ctx)
}

// Get returns the ontology, or one of its submissions when submissionID is set.
func (s *OntologyService) Get(ctx context.Context, acronym string, submissionID *int) (any, error) {
	o, err := s.getOntology(ctx, acronym)
	if err != nil {
		return nil, err
	}
	if submissionID == nil {
		return o, nil
	}

	sub, err := s.stores.Submissions.GetSubmission(ctx, acronym, *submissionID)
	if sqlerr.IsNotFound(err) {
		return nil, errs.NotFoundf("Submission `%d` not found for ontology `%s`", *submissionID, acronym)
	}
	return sub, err
}

func (s *OntologyService) ListSubmissions(ctx context.Context, acronym string) ([]model.Submission, error) {
	if _, err := s.getOntology(ctx, acronym); err != nil {
		return nil, err
	}
	return s.stores.Submissions.ListSubmissions(ctx, acronym)
}

// EnsureNew fails when an ontology is already registered under acronym.
func (s *OntologyService) EnsureNew(ctx context.Context, acronym string) error {
	_, err := s.stores.Ontologies.GetOntology(ctx, acronym)
	switch {
	case err == nil:
		return errs.BadRequestf(
			"Ontology already exists, to add a new submission, please POST to: /ontologies/%s/submission", acronym)
	case !sqlerr.IsNotFound(err):
		return err
	}
	return nil
}

// Create registers a new ontology under a client-chosen acronym together
// with its first submission.
func (s *OntologyService) Create(ctx context.Context, acronym string, fields OntologyFields, sub SubmissionFields, file *Upload) (*model.Submission, error) {
	if err := s.EnsureNew(ctx, acronym); err != nil {
		return nil, err
	}

	if err := validateNewSubmission(sub, file); err != nil {
		return nil, err
	}
	if err := s.checkAdministrators(ctx, fields.AdministeredBy); err != nil {
		return nil, err
	}

	o := &model.Ontology{
		ID:             model.OntologyURI(s.server.Config.Repository.BaseURI, acronym),
		Acronym:        acronym,
		AdministeredBy: []string{},
	}
	applyOntologyFields(o, fields)

	if err := s.stores.Ontologies.CreateOntology(ctx, o); err != nil {
		return nil, err
	}

	created, err := s.createSubmission(ctx, o, sub, file)
	if err != nil {
		if delErr := s.stores.Ontologies.DeleteOntology(ctx, acronym); delErr != nil {
			s.server.Logger.Error().Err(delErr).Str("acronym", acronym).Msg("failed to roll back ontology")
		}
		return nil, err
	}

	s.mappings.InvalidateStatistics(ctx)
	return created, nil
}

// CreateSubmission adds a new version to an existing ontology.
func (s *OntologyService) CreateSubmission(ctx context.Context, acronym string, sub SubmissionFields, file *Upload) (*model.Submission, error) {
	o, err := s.stores.Ontologies.GetOntology(ctx, acronym)
	if sqlerr.IsNotFound(err) {
		return nil, errs.BadRequestf("You must provide a valid `acronym` to create a new submission")
	}
	if err != nil {
		return nil, err
	}

	if err := validateNewSubmission(sub, file); err != nil {
		return nil, err
	}

	return s.createSubmission(ctx, o, sub, file)
}

func validateNewSubmission(sub SubmissionFields, file *Upload) error {
	var fieldErrors []errs.FieldError

	if strings.TrimSpace(utils.Deref(sub.HasOntologyLanguage)) == "" {
		fieldErrors = append(fieldErrors, errs.FieldError{Field: "hasOntologyLanguage", Error: "is required"})
	}

	pull := utils.Deref(sub.PullLocation)
	switch {
	case file == nil && pull == "":
		fieldErrors = append(fieldErrors, errs.FieldError{
			Field: "pullLocation",
			Error: "a file upload or a pullLocation is required",
		})
	case pull != "" && !utils.IsHTTPURI(pull):
		fieldErrors = append(fieldErrors, errs.FieldError{Field: "pullLocation", Error: "must be a valid URL"})
	}

	if len(fieldErrors) > 0 {
		return errs.NewBadRequestError("Validation failed", true, nil, fieldErrors, nil)
	}
	return nil
}

func (s *OntologyService) checkAdministrators(ctx context.Context, usernames []string) error {
	for _, username := range usernames {
		_, err := s.stores.Users.GetUser(ctx, username)
		if sqlerr.IsNotFound(err) {
			return errs.NewBadRequestError("Validation failed", true, nil, []errs.FieldError{{
				Field: "administeredBy",
				Error: fmt.Sprintf("User with id `%s` not found", username),
			}}, nil)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func applyOntologyFields(o *model.Ontology, f OntologyFields) {
	if f.Name != nil {
		o.Name = *f.Name
	}
	if f.AdministeredBy != nil {
		o.AdministeredBy = f.AdministeredBy
	}
	if f.SummaryOnly != nil {
		o.SummaryOnly = *f.SummaryOnly
	}
	if f.Flat != nil {
		o.Flat = *f.Flat
	}
	if f.ViewingRestriction != nil {
		o.ViewingRestriction = *f.ViewingRestriction
	}
}

func ontologyLanguage(v *string) string {
	return strings.ToUpper(strings.TrimSpace(utils.Deref(v)))
}

func applySubmissionFields(sub *model.Submission, f SubmissionFields) {
	if f.HasOntologyLanguage != nil {
		sub.HasOntologyLanguage = ontologyLanguage(f.HasOntologyLanguage)
	}
	set := func(dst **string, v *string) {
		if v != nil {
			*dst = v
		}
	}
	set(&sub.PullLocation, f.PullLocation)
	set(&sub.Description, f.Description)
	set(&sub.Version, f.Version)
	set(&sub.Homepage, f.Homepage)
	set(&sub.Documentation, f.Documentation)
	set(&sub.Publication, f.Publication)
	set(&sub.ContactName, f.ContactName)
	set(&sub.ContactEmail, f.ContactEmail)
	if f.Released != nil {
		sub.Released = f.Released
	}
}

// submissionIDAttempts bounds how often createSubmission retries when
// another request took the submission id it computed.
const submissionIDAttempts = 3

// reserveSubmission inserts the submission row under the next free id, so the
// id is owned by this request before any file is written for it.
func (s *OntologyService) reserveSubmission(ctx context.Context, o *model.Ontology, fields SubmissionFields) (*model.Submission, error) {
	var err error
	for range submissionIDAttempts {
		var id int
		id, err = s.stores.Submissions.NextSubmissionID(ctx, o.Acronym)
		if err != nil {
			return nil, err
		}

		sub := &model.Submission{
			ID:               model.SubmissionURI(s.server.Config.Repository.BaseURI, o.Acronym, id),
			Ontology:         o.Acronym,
			SubmissionID:     id,
			SubmissionStatus: model.StatusUploaded,
		}
		applySubmissionFields(sub, fields)

		err = s.stores.Submissions.CreateSubmission(ctx, sub)
		if err == nil {
			return sub, nil
		}
		if !sqlerr.IsUniqueViolation(err) {
			return nil, err
		}
		s.server.Logger.Warn().
			Str("acronym", o.Acronym).
			Int("submission_id", id).
			Msg("submission id taken, retrying")
	}
	return nil, err
}

func (s *OntologyService) createSubmission(ctx context.Context, o *model.Ontology, fields SubmissionFields, file *Upload) (*model.Submission, error) {
	if err := s.stores.Submissions.EnsureFormat(ctx, ontologyLanguage(fields.HasOntologyLanguage)); err != nil {
		return nil, err
	}

	sub, err := s.reserveSubmission(ctx, o, fields)
	if err != nil {
		return nil, err
	}

	if file != nil {
		if err := s.attachUpload(ctx, sub, file); err != nil {
			if delErr := s.stores.Submissions.DeleteSubmission(context.WithoutCancel(ctx), o.Acronym, sub.SubmissionID); delErr != nil {
				s.server.Logger.Error().Err(delErr).
					Str("acronym", o.Acronym).
					Int("submission_id", sub.SubmissionID).
					Msg("failed to roll back submission")
			}
			return nil, err
		}
	}

	s.server.Metrics.SubmissionCreated()
	s.server.Logger.Info().
		Str("acronym", o.Acronym).
		Int("submission_id", sub.SubmissionID).
		Bool("uploaded", file != nil).
		Msg("submission created")

	s.enqueueProcessing(ctx, sub)
	return sub, nil
}

// attachUpload stores file for a reserved submission and records it on the
// row. On failure only the file written here is removed.
func (s *OntologyService) attachUpload(ctx context.Context, sub *model.Submission, file *Upload) error {
	stored, err := s.server.Files.Save(sub.Ontology, sub.SubmissionID, file.Filename, file.Reader)
	if errors.Is(err, storage.ErrInvalidFilename) {
		return errs.NewBadRequestError("Validation failed", true, nil, []errs.FieldError{{
			Field: "file",
			Error: "invalid file name",
		}}, nil)
	}
	if err != nil {
		return err
	}

	setStoredFile(sub, stored)
	if err := s.stores.Submissions.UpdateSubmission(ctx, sub); err != nil {
		_ = s.server.Files.Remove(stored.Path)
		return err
	}
	return nil
}

func setStoredFile(sub *model.Submission, stored *storage.StoredFile) {
	sub.UploadFilePath = &stored.Path
	sub.FileSize = stored.Size
	sub.FileMD5 = &stored.MD5
	sub.ContentType = &stored.ContentType
}

// enqueueProcessing schedules parsing of sub. Without a job queue the
// submission is parsed before returning, and runs to the end even when the
// client goes away.
func (s *OntologyService) enqueueProcessing(ctx context.Context, sub *model.Submission) {
	if s.enqueuer == nil {
		if err := s.ProcessSubmission(context.WithoutCancel(ctx), sub.Ontology, sub.SubmissionID); err != nil {
			s.server.Logger.Error().Err(err).
				Str("acronym", sub.Ontology).
				Int("submission_id", sub.SubmissionID).
				Msg("inline submission processing failed")
		}
		return
	}

	task, err := job.NewProcessSubmissionTask(sub.Ontology, sub.SubmissionID)
	if err == nil {
		_, err = s.enqueuer.EnqueueContext(ctx, task)
	}
	if err != nil {
		s.server.Logger.Error().Err(err).
			Str("acronym", sub.Ontology).
			Int("submission_id", sub.SubmissionID).
			Msg("failed to enqueue submission processing")
	}
}

// PatchOntology updates only the supplied ontology fields.
func (s *OntologyService) PatchOntology(ctx context.Context, acronym string, fields OntologyFields) error {
	o, err := s.stores.Ontologies.GetOntology(ctx, acronym)
	if sqlerr.IsNotFound(err) {
		return errs.BadRequestf("You must provide an existing `acronym` to patch")
	}
	if err != nil {
		return err
	}

	if fields.AdministeredBy != nil {
		if len(fields.AdministeredBy) == 0 {
			return errs.NewBadRequestError("Validation failed", true, nil, []errs.FieldError{{
				Field: "administeredBy",
				Error: "is required",
			}}, nil)
		}
		if err := s.checkAdministrators(ctx, fields.AdministeredBy); err != nil {
			return err
		}
	}

	applyOntologyFields(o, fields)
	return s.stores.Ontologies.UpdateOntology(ctx, o)
}

// PatchSubmission updates only the supplied submission fields.
func (s *OntologyService) PatchSubmission(ctx context.Context, acronym string, submissionID int, fields SubmissionFields) error {
	_, err := s.stores.Ontologies.GetOntology(ctx, acronym)
	if sqlerr.IsNotFound(err) {
		return errs.BadRequestf("You must provide an existing `acronym` to patch")
	}
	if err != nil {
		return err
	}

	sub, err := s.stores.Submissions.GetSubmission(ctx, acronym, submissionID)
	if sqlerr.IsNotFound(err) {
		return errs.BadRequestf("You must provide an existing `submissionId` to patch")
	}
	if err != nil {
		return err
	}

	applySubmissionFields(sub, fields)
	if fields.HasOntologyLanguage != nil {
		if err := s.stores.Submissions.EnsureFormat(ctx, sub.HasOntologyLanguage); err != nil {
			return err
		}
	}

	return s.stores.Submissions.UpdateSubmission(ctx, sub)
}

// Delete removes the ontology, its submissions, classes and files, and the
// mappings left with a single side.
func (s *OntologyService) Delete(ctx context.Context, acronym string) error {
	err := s.stores.Ontologies.DeleteOntology(ctx, acronym)
	if sqlerr.IsNotFound(err) {
		return errs.BadRequestf("You must provide an existing `acronym` to delete")
	}
	if err != nil {
		return err
	}

	if err := s.server.Files.RemoveOntology(acronym); err != nil {
		s.server.Logger.Error().Err(err).Str("acronym", acronym).Msg("failed to remove ontology files")
	}

	s.mappings.InvalidateStatistics(ctx)
	return nil
}

func (s *OntologyService) DeleteSubmission(ctx context.Context, acronym string, submissionID int) error {
	_, err := s.stores.Ontologies.GetOntology(ctx, acronym)
	if sqlerr.IsNotFound(err) {
		return errs.BadRequestf("You must provide an existing `acronym` to delete")
	}
	if err != nil {
		return err
	}

	err = s.stores.Submissions.DeleteSubmission(ctx, acronym, submissionID)
	if sqlerr.IsNotFound(err) {
		return errs.BadRequestf("You must provide an existing `submissionId` to delete")
	}
	if err != nil {
		return err
	}

	if err := s.server.Files.RemoveSubmission(acronym, submissionID); err != nil {
		s.server.Logger.Error().Err(err).
			Str("acronym", acronym).
			Int("submission_id", submissionID).
			Msg("failed to remove submission files")
	}
	return nil
}

// latestParsed returns the most recent submission with status RDF.
func (s *OntologyService) latestParsed(ctx context.Context, acronym string) (*model.Submission, error) {
	if _, err := s.getOntology(ctx, acronym); err != nil {
		return nil, err
	}

	sub, err := s.stores.Submissions.LatestSubmission(ctx, acronym)
	if sqlerr.IsNotFound(err) {
		return nil, errs.NotFoundf("Ontology `%s` has no parsed submission", acronym)
	}
	return sub, err
}

// Download opens the uploaded file of a submission: the given one, or else
// the latest parsed one, or else the newest.
func (s *OntologyService) Download(ctx context.Context, acronym string, submissionID *int) (*FileResult, error) {
	if _, err := s.getOntology(ctx, acronym); err != nil {
		return nil, err
	}

	var (
		sub *model.Submission
		err error
	)
	if submissionID != nil {
		sub, err = s.stores.Submissions.GetSubmission(ctx, acronym, *submissionID)
		if sqlerr.IsNotFound(err) {
			return nil, errs.NotFoundf("Submission `%d` not found for ontology `%s`", *submissionID, acronym)
		}
	} else {
		sub, err = s.stores.Submissions.LatestSubmission(ctx, acronym)
		if sqlerr.IsNotFound(err) {
			var all []model.Submission
			all, err = s.stores.Submissions.ListSubmissions(ctx, acronym)
			if err == nil && len(all) == 0 {
				return nil, errs.NotFoundf("Ontology `%s` has no submissions", acronym)
			}
			if err == nil {
				sub = &all[0]
			}
		}
	}
	if err != nil {
		return nil, err
	}

	if !sub.HasFile() {
		return nil, errs.NotFoundf("Submission `%d` of ontology `%s` has no file", sub.SubmissionID, acronym)
	}

	f, err := s.server.Files.Open(*sub.UploadFilePath)
	if err != nil {
		return nil, fmt.Errorf("opening file of %s/%d: %w", acronym, sub.SubmissionID, err)
	}

	return &FileResult{
		Name:        filepath.Base(*sub.UploadFilePath),
		ContentType: utils.Deref(sub.ContentType),
		Size:        sub.FileSize,
		Reader:      f,
	}, nil
}

// Properties lists the properties of the latest parsed submission.
func (s *OntologyService) Properties(ctx context.Context, acronym string) ([]model.Property, error) {
	sub, err := s.latestParsed(ctx, acronym)
	if err != nil {
		return nil, err
	}
	return s.stores.Classes.ListProperties(ctx, acronym, sub.SubmissionID)
}

// Classes pages through the classes of the latest parsed submission.
func (s *OntologyService) Classes(ctx context.Context, acronym string, page, size int) (*model.Page[model.Class], error) {
	sub, err := s.latestParsed(ctx, acronym)
	if err != nil {
		return nil, err
	}

	page, size = s.pagination(page, size)
	classes, total, err := s.stores.Classes.ListClasses(ctx, acronym, sub.SubmissionID, page, size)
	if err != nil {
		return nil, err
	}
	return model.NewPage(classes, page, size, total), nil
}

func (s *OntologyService) Class(ctx context.Context, acronym, classID string) (*model.Class, error) {
	sub, err := s.latestParsed(ctx, acronym)
	if err != nil {
		return nil, err
	}

	c, err := s.stores.Classes.GetClass(ctx, acronym, sub.SubmissionID, classID)
	if sqlerr.IsNotFound(err) {
		return nil, errs.NotFoundf("Class with id `%s` not found in ontology `%s`", classID, acronym)
	}
	return c, err
}

func (s *OntologyService) pagination(page, size int) (int, int) {
	r := s.server.Config.Repository
	return Pagination(page, size, r.DefaultPageSize, r.MaxPageSize)
}

// ProcessSubmission parses a stored submission, replacing its classes and
// properties, and records the outcome in its status. A submission that
// cannot be fetched or parsed ends in ERROR_RDF; only storage failures are
// returned.
func (s *OntologyService) ProcessSubmission(ctx context.Context, acronym string, submissionID int) error {
	sub, err := s.stores.Submissions.GetSubmission(ctx, acronym, submissionID)
	if err != nil {
		return fmt.Errorf("loading submission %s/%d: %w", acronym, submissionID, err)
	}

	logger := s.server.Logger.With().
		Str("acronym", acronym).
		Int("submission_id", submissionID).
		Logger()

	result, parseErr := s.parse(ctx, sub)
	if parseErr == nil {
		if err := s.stores.Classes.ReplaceClasses(ctx, acronym, submissionID, result.Classes); err != nil {
			return err
		}
		if err := s.stores.Classes.ReplaceProperties(ctx, acronym, submissionID, result.Properties); err != nil {
			return err
		}
		sub.SubmissionStatus = model.StatusRDF
		sub.ClassCount = len(result.Classes)
		sub.ParseError = nil
	} else {
		msg := parseErr.Error()
		sub.SubmissionStatus = model.StatusErrorRDF
		sub.ParseError = &msg
	}

	if err := s.stores.Submissions.UpdateSubmission(ctx, sub); err != nil {
		return err
	}

	s.server.Metrics.SubmissionProcessed(sub.SubmissionStatus)
	if parseErr != nil {
		logger.Warn().Err(parseErr).Msg("submission could not be parsed")
	} else {
		logger.Info().Int("classes", sub.ClassCount).Msg("submission parsed")
	}

	s.notifyAdministrators(ctx, sub)
	return nil
}

// parse reads the submission file, pulling it from pullLocation into the
// file store first when nothing was uploaded.
func (s *OntologyService) parse(ctx context.Context, sub *model.Submission) (*parser.Result, error) {
	if !sub.HasFile() {
		if sub.PullLocation == nil || *sub.PullLocation == "" {
			return nil, errors.New("submission has neither an uploaded file nor a pullLocation")
		}
		stored, err := s.pull(ctx, sub.Ontology, sub.SubmissionID, *sub.PullLocation)
		if err != nil {
			return nil, err
		}
		setStoredFile(sub, stored)
	}

	f, err := s.server.Files.Open(*sub.UploadFilePath)
	if err != nil {
		return nil, fmt.Errorf("opening submission file: %w", err)
	}
	defer f.Close()

	return parser.Parse(sub.HasOntologyLanguage, f)
}

func (s *OntologyService) pull(ctx context.Context, acronym string, submissionID int, location string) (*storage.StoredFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid pullLocation: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", location, resp.Status)
	}

	return s.server.Files.Save(acronym, submissionID, pulledFilename(location, acronym), resp.Body)
}

func pulledFilename(location, acronym string) string {
	if u, err := url.Parse(location); err == nil {
		if name := path.Base(u.Path); name != "/" && name != "." && name != "" {
			return name
		}
	}
	return acronym
}

func (s *OntologyService) notifyAdministrators(ctx context.Context, sub *model.Submission) {
	if s.enqueuer == nil {
		return
	}

	o, err := s.stores.Ontologies.GetOntology(ctx, sub.Ontology)
	if err != nil {
		s.server.Logger.Error().Err(err).Str("acronym", sub.Ontology).Msg("failed to load ontology for notification")
		return
	}

	for _, username := range o.AdministeredBy {
		u, err := s.stores.Users.GetUser(ctx, username)
		if err != nil || u.Email == nil || *u.Email == "" {
			continue
		}

		task, err := job.NewSubmissionEmailTask(job.SubmissionEmailPayload{
			To:            *u.Email,
			Username:      u.Username,
			Acronym:       sub.Ontology,
			SubmissionID:  sub.SubmissionID,
			SubmissionURI: sub.ID,
			Status:        sub.SubmissionStatus,
			ClassCount:    sub.ClassCount,
			ParseError:    utils.Deref(sub.ParseError),
		})
		if err == nil {
			_, err = s.enqueuer.EnqueueContext(ctx, task)
		}
		if err != nil {
			s.server.Logger.Error().Err(err).Str("to", *u.Email).Msg("failed to enqueue submission email")
		}
	}
}
