package testutil

import (
	"context"
	"testing"

	"github.com/deppfellow/ontology-api/internal/config"
	"github.com/deppfellow/ontology-api/internal/lib/storage"
	"github.com/deppfellow/ontology-api/internal/metrics"
	"github.com/deppfellow/ontology-api/internal/model"
	"github.com/deppfellow/ontology-api/internal/server"
	"github.com/rs/zerolog"
)

// BaseURI is the repository base URI of test servers.
const BaseURI = "http://data.test"

// NewServer returns a Server without database or Redis: default repository
// settings, a discarding logger, fresh metrics and a temporary file store.
func NewServer(t *testing.T) *server.Server {
	t.Helper()

	repo := config.DefaultRepositoryConfig()
	repo.BaseURI = BaseURI
	repo.FilesFolder = t.TempDir()
	repo.DefaultPageSize = 2
	repo.MaxPageSize = 10

	cfg := &config.Config{
		Primary:       config.Primary{Env: "test"},
		Server:        config.ServerConfig{Port: "0", CORSAllowedOrigins: []string{"*"}},
		Repository:    repo,
		Observability: config.DefaultObservabilityConfig(),
	}

	logger := zerolog.Nop()
	return &server.Server{
		Config:  cfg,
		Logger:  &logger,
		Metrics: metrics.New(),
		Files:   storage.NewFileStore(repo.FilesFolder),
	}
}

// SeedUser stores a user, with an email when one is given.
func (m *MemStore) SeedUser(t *testing.T, username, email string) {
	t.Helper()

	u := &model.User{ID: model.UserURI(BaseURI, username), Username: username}
	if email != "" {
		u.Email = &email
	}
	if err := m.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seeding user %s: %v", username, err)
	}
}

// SeedParsedOntology stores an ontology administered by admin with one
// parsed (RDF) submission holding classes.
func (m *MemStore) SeedParsedOntology(t *testing.T, acronym, admin string, classIDs ...string) {
	t.Helper()
	ctx := context.Background()

	o := &model.Ontology{
		ID:             model.OntologyURI(BaseURI, acronym),
		Acronym:        acronym,
		Name:           acronym + " ontology",
		AdministeredBy: []string{admin},
	}
	if err := m.CreateOntology(ctx, o); err != nil {
		t.Fatalf("seeding ontology %s: %v", acronym, err)
	}

	sub := &model.Submission{
		ID:                  model.SubmissionURI(BaseURI, acronym, 1),
		Ontology:            acronym,
		SubmissionID:        1,
		SubmissionStatus:    model.StatusRDF,
		HasOntologyLanguage: model.FormatOWL,
		ClassCount:          len(classIDs),
	}
	if err := m.CreateSubmission(ctx, sub); err != nil {
		t.Fatalf("seeding submission of %s: %v", acronym, err)
	}

	classes := make([]model.Class, 0, len(classIDs))
	for _, id := range classIDs {
		classes = append(classes, model.Class{ID: id, PrefLabel: id, Synonyms: []string{}, Definition: []string{}})
	}
	if err := m.ReplaceClasses(ctx, acronym, 1, classes); err != nil {
		t.Fatalf("seeding classes of %s: %v", acronym, err)
	}
}
