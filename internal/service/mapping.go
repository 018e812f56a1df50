package service

import (
	"context"
	"fmt"
	"time"

	"github.com/deppfellow/ontology-api/internal/errs"
	"github.com/deppfellow/ontology-api/internal/lib/utils"
	"github.com/deppfellow/ontology-api/internal/model"
	"github.com/deppfellow/ontology-api/internal/server"
	"github.com/deppfellow/ontology-api/internal/sqlerr"
	"github.com/deppfellow/ontology-api/internal/validation"
	"github.com/google/uuid"
)

// TermInput is one side of a mapping as submitted: an ontology (acronym or
// URI) and the class URIs mapped on that side.
type TermInput struct {
	Ontology string
	Terms    []string
}

// MappingInput is a structurally valid mapping creation request.
type MappingInput struct {
	Terms      []TermInput
	Relation   string
	Creator    string
	Source     *string
	SourceName *string
	Comment    *string
}

type MappingService struct {
	server *server.Server
	stores Stores
	cache  StatsCache
}

func NewMappingService(s *server.Server, stores Stores, cache StatsCache) *MappingService {
	return &MappingService{
		server: s,
		stores: stores,
		cache:  cache,
	}
}

// Create checks every side of the mapping against the latest parsed
// submissions, resolves the creator, and stores the mapping with a new
// "REST Mapping" process.
func (s *MappingService) Create(ctx context.Context, in MappingInput) (*model.Mapping, error) {
	terms := make([]model.TermMapping, 0, len(in.Terms))

	for _, t := range in.Terms {
		acronym := utils.LastSegment(t.Ontology)
		o, err := s.stores.Ontologies.GetOntology(ctx, acronym)
		if sqlerr.IsNotFound(err) {
			return nil, errs.BadRequestf("Ontology with ID `%s` not found", t.Ontology)
		}
		if err != nil {
			return nil, err
		}

		// Each id is checked in turn: URI, then parsed submission, then class.
		var sub *model.Submission
		for _, id := range t.Terms {
			if !utils.IsHTTPURI(id) {
				return nil, errs.BadRequestf("Term ID %s is not valid, it must be an HTTP URI", id)
			}

			if sub == nil {
				sub, err = s.stores.Submissions.LatestSubmission(ctx, o.Acronym)
				if sqlerr.IsNotFound(err) {
					return nil, errs.BadRequestf("Ontology with id %s does not have parsed valid submission", t.Ontology)
				}
				if err != nil {
					return nil, err
				}
			}

			_, err := s.stores.Classes.GetClass(ctx, o.Acronym, sub.SubmissionID, id)
			if sqlerr.IsNotFound(err) {
				return nil, errs.BadRequestf("Class ID `%s` not found in `%s`", id, sub.ID)
			}
			if err != nil {
				return nil, err
			}
		}

		terms = append(terms, model.TermMapping{Ontology: o.Acronym, Terms: t.Terms})
	}

	creator, err := s.stores.Users.GetUser(ctx, utils.LastSegment(in.Creator))
	if sqlerr.IsNotFound(err) {
		return nil, errs.BadRequestf("User with id `%s` not found", in.Creator)
	}
	if err != nil {
		return nil, err
	}

	if !utils.IsAbsoluteURI(in.Relation) {
		return nil, errs.BadRequestf("Relation `%s` is not a valid URI", in.Relation)
	}

	mappingID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating mapping id: %w", err)
	}
	processID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating mapping process id: %w", err)
	}

	base := s.server.Config.Repository.BaseURI
	m := &model.Mapping{
		UUID:  mappingID.String(),
		ID:    model.MappingURI(base, mappingID.String()),
		Terms: terms,
		Process: model.MappingProcess{
			UUID:       processID.String(),
			ID:         model.MappingProcessURI(base, processID.String()),
			Name:       model.ProcessNameREST,
			Creator:    creator.Username,
			Relation:   in.Relation,
			Source:     in.Source,
			SourceName: in.SourceName,
			Comment:    in.Comment,
			Date:       time.Now().UTC(),
		},
	}

	if err := s.stores.Mappings.CreateMapping(ctx, m); err != nil {
		return nil, err
	}

	s.server.Metrics.MappingCreated()
	s.server.Logger.Info().
		Str("mapping_id", m.UUID).
		Strs("ontologies", m.Ontologies()).
		Str("creator", creator.Username).
		Msg("mapping created")

	s.InvalidateStatistics(ctx)
	return m, nil
}

// mappingUUID accepts a bare UUID or a mapping URI.
func mappingUUID(id string) (string, bool) {
	candidate := utils.LastSegment(id)
	return candidate, validation.IsValidUUID(candidate)
}

func (s *MappingService) Get(ctx context.Context, id string) (*model.Mapping, error) {
	key, ok := mappingUUID(id)
	if !ok {
		return nil, errs.NotFoundf("Mapping with id `%s` not found", id)
	}

	m, err := s.stores.Mappings.GetMapping(ctx, key)
	if sqlerr.IsNotFound(err) {
		return nil, errs.NotFoundf("Mapping with id `%s` not found", id)
	}
	return m, err
}

func (s *MappingService) Delete(ctx context.Context, id string) error {
	key, ok := mappingUUID(id)
	if !ok {
		return errs.NotFoundf("Mapping with id `%s` not found", id)
	}

	err := s.stores.Mappings.DeleteMapping(ctx, key)
	if sqlerr.IsNotFound(err) {
		return errs.NotFoundf("Mapping with id `%s` not found", id)
	}
	if err != nil {
		return err
	}

	s.server.Metrics.MappingDeleted()
	s.InvalidateStatistics(ctx)
	return nil
}

func (s *MappingService) requireOntology(ctx context.Context, acronym string) (*model.Ontology, error) {
	o, err := s.stores.Ontologies.GetOntology(ctx, acronym)
	if sqlerr.IsNotFound(err) {
		return nil, ontologyNotFound(acronym)
	}
	return o, err
}

// ForOntology pages through the mappings with a side in the ontology.
func (s *MappingService) ForOntology(ctx context.Context, acronym string, page, size int) (*model.Page[model.Mapping], error) {
	if _, err := s.requireOntology(ctx, acronym); err != nil {
		return nil, err
	}

	r := s.server.Config.Repository
	page, size = Pagination(page, size, r.DefaultPageSize, r.MaxPageSize)

	mappings, total, err := s.stores.Mappings.ListByOntology(ctx, acronym, page, size)
	if err != nil {
		return nil, err
	}
	return model.NewPage(mappings, page, size, total), nil
}

// ForClass lists the mappings of a class of the latest parsed submission.
func (s *MappingService) ForClass(ctx context.Context, acronym, classID string) ([]model.Mapping, error) {
	if _, err := s.requireOntology(ctx, acronym); err != nil {
		return nil, err
	}

	notFound := errs.NotFoundf("Class with id `%s` not found in ontology `%s`", classID, acronym)

	sub, err := s.stores.Submissions.LatestSubmission(ctx, acronym)
	if sqlerr.IsNotFound(err) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}

	_, err = s.stores.Classes.GetClass(ctx, acronym, sub.SubmissionID, classID)
	if sqlerr.IsNotFound(err) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}

	return s.stores.Mappings.ListByClass(ctx, acronym, classID)
}

// Recent returns the newest mappings; size defaults to 5 and is capped at 50.
func (s *MappingService) Recent(ctx context.Context, size int) ([]model.Mapping, error) {
	_, size = Pagination(1, size, 5, 50)
	return s.stores.Mappings.Recent(ctx, size)
}
