// Package service contains the business logic.
//
// It sits between the handler and repository layers. It receives validated
// data from the handler, enforces the repository rules (existence checks,
// mapping consistency, submission numbering), and calls the repositories
// through the interfaces below so it can be tested without PostgreSQL.
package service

import (
	"context"
	"time"

	"github.com/deppfellow/ontology-api/internal/model"
	"github.com/deppfellow/ontology-api/internal/repository"
	"github.com/deppfellow/ontology-api/internal/server"
	"github.com/hibiken/asynq"
)

type OntologyRepository interface {
	ListOntologies(ctx context.Context) ([]model.Ontology, error)
	GetOntology(ctx context.Context, acronym string) (*model.Ontology, error)
	CreateOntology(ctx context.Context, o *model.Ontology) error
	UpdateOntology(ctx context.Context, o *model.Ontology) error
	DeleteOntology(ctx context.Context, acronym string) error
}

type SubmissionRepository interface {
	ListSubmissions(ctx context.Context, acronym string) ([]model.Submission, error)
	LatestSubmissions(ctx context.Context) ([]model.Submission, error)
	GetSubmission(ctx context.Context, acronym string, submissionID int) (*model.Submission, error)
	LatestSubmission(ctx context.Context, acronym string) (*model.Submission, error)
	NextSubmissionID(ctx context.Context, acronym string) (int, error)
	EnsureFormat(ctx context.Context, acronym string) error
	CreateSubmission(ctx context.Context, s *model.Submission) error
	UpdateSubmission(ctx context.Context, s *model.Submission) error
	DeleteSubmission(ctx context.Context, acronym string, submissionID int) error
}

type ClassRepository interface {
	ReplaceClasses(ctx context.Context, acronym string, submissionID int, classes []model.Class) error
	ListClasses(ctx context.Context, acronym string, submissionID, page, size int) ([]model.Class, int, error)
	GetClass(ctx context.Context, acronym string, submissionID int, classID string) (*model.Class, error)
	ReplaceProperties(ctx context.Context, acronym string, submissionID int, properties []model.Property) error
	ListProperties(ctx context.Context, acronym string, submissionID int) ([]model.Property, error)
}

type MappingRepository interface {
	CreateMapping(ctx context.Context, m *model.Mapping) error
	GetMapping(ctx context.Context, id string) (*model.Mapping, error)
	DeleteMapping(ctx context.Context, id string) error
	ListByOntology(ctx context.Context, acronym string, page, size int) ([]model.Mapping, int, error)
	ListByClass(ctx context.Context, acronym, classID string) ([]model.Mapping, error)
	Recent(ctx context.Context, limit int) ([]model.Mapping, error)
	CountByOntology(ctx context.Context) (map[string]int, error)
	CountBetween(ctx context.Context, acronym string) (map[string]int, error)
	PopularClasses(ctx context.Context, acronym string, limit int) (map[string]int, error)
	TopCreators(ctx context.Context, acronym string, limit int) (map[string]int, error)
}

type UserRepository interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, username string) (*model.User, error)
	CreateUser(ctx context.Context, u *model.User) error
}

// Stores groups the persistence the services depend on.
type Stores struct {
	Ontologies  OntologyRepository
	Submissions SubmissionRepository
	Classes     ClassRepository
	Mappings    MappingRepository
	Users       UserRepository
}

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// StatsCache is satisfied by *cache.Cache, including a nil one.
type StatsCache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

type Services struct {
	Auth     *AuthService
	Ontology *OntologyService
	Mapping  *MappingService
	User     *UserService
}

// NewServices wires the services on the PostgreSQL repositories, the job
// client and the Redis cache of s.
func NewServices(s *server.Server, repos *repository.Repositories) (*Services, error) {
	stores := Stores{
		Ontologies:  repos.Ontology,
		Submissions: repos.Submission,
		Classes:     repos.Class,
		Mappings:    repos.Mapping,
		Users:       repos.User,
	}

	var enqueuer TaskEnqueuer
	if s.Job != nil {
		enqueuer = s.Job.Client
	}

	return NewServicesWithStores(s, stores, enqueuer), nil
}

// NewServicesWithStores wires the services on arbitrary stores. A nil
// enqueuer makes submission processing and notifications run inline.
func NewServicesWithStores(s *server.Server, stores Stores, enqueuer TaskEnqueuer) *Services {
	var cache StatsCache = s.Cache

	mapping := NewMappingService(s, stores, cache)
	ontology := NewOntologyService(s, stores, enqueuer, mapping)

	return &Services{
		Auth:     NewAuthService(s),
		Ontology: ontology,
		Mapping:  mapping,
		User:     NewUserService(s, stores.Users),
	}
}

// Pagination normalises page parameters: page is at least 1, size defaults
// to defaultSize and is clamped to [1, maxSize].
func Pagination(page, size, defaultSize, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultSize
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	if size < 1 {
		size = 1
	}
	return page, size
}
