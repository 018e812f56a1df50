package service_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deppfellow/ontology-api/internal/errs"
	"github.com/deppfellow/ontology-api/internal/lib/job"
	"github.com/deppfellow/ontology-api/internal/lib/utils"
	"github.com/deppfellow/ontology-api/internal/model"
	"github.com/deppfellow/ontology-api/internal/server"
	"github.com/deppfellow/ontology-api/internal/service"
	"github.com/deppfellow/ontology-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oboFile = `format-version: 1.2
ontology: tst

[Term]
id: TST:0000001
name: first

[Term]
id: TST:0000002
name: second
`

type fixture struct {
	srv      *server.Server
	store    *testutil.MemStore
	enqueuer *testutil.RecordingEnqueuer
	services *service.Services
}

func stores(m *testutil.MemStore) service.Stores {
	return service.Stores{Ontologies: m, Submissions: m, Classes: m, Mappings: m, Users: m}
}

// newFixture wires the services on a MemStore. With queue false tasks are
// not enqueued and submissions are parsed inline.
func newFixture(t *testing.T, queue bool) *fixture {
	t.Helper()

	f := &fixture{
		srv:   testutil.NewServer(t),
		store: testutil.NewMemStore(),
	}

	var enqueuer service.TaskEnqueuer
	if queue {
		f.enqueuer = &testutil.RecordingEnqueuer{}
		enqueuer = f.enqueuer
	}
	f.services = service.NewServicesWithStores(f.srv, stores(f.store), enqueuer)
	return f
}

func requireHTTPError(t *testing.T, err error, status int, message string) {
	t.Helper()

	var httpErr *errs.HTTPError
	require.True(t, errors.As(err, &httpErr), "expected *errs.HTTPError, got %v", err)
	assert.Equal(t, status, httpErr.Status)
	if message != "" {
		assert.Equal(t, message, httpErr.Message)
	}
}

func newOntology(name string, admins ...string) service.OntologyFields {
	return service.OntologyFields{Name: &name, AdministeredBy: admins}
}

func oboSubmission() service.SubmissionFields {
	return service.SubmissionFields{HasOntologyLanguage: utils.Ptr("obo")}
}

func TestCreateOntologyParsesInline(t *testing.T) {
	f := newFixture(t, false)
	f.store.SeedUser(t, "alice", "alice@example.org")
	ctx := context.Background()

	sub, err := f.services.Ontology.Create(ctx, "TST", newOntology("Test", "alice"), oboSubmission(),
		&service.Upload{Filename: "tst.obo", Reader: strings.NewReader(oboFile)})
	require.NoError(t, err)

	assert.Equal(t, 1, sub.SubmissionID)
	assert.Equal(t, testutil.BaseURI+"/ontologies/TST/submissions/1", sub.ID)
	assert.Equal(t, model.FormatOBO, sub.HasOntologyLanguage)
	require.True(t, sub.HasFile())
	assert.EqualValues(t, len(oboFile), sub.FileSize)

	stored, err := f.store.GetSubmission(ctx, "TST", 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRDF, stored.SubmissionStatus)
	assert.Equal(t, 2, stored.ClassCount)

	page, err := f.services.Ontology.Classes(ctx, "TST", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, "http://purl.obolibrary.org/obo/TST_0000001", page.Collection[0].ID)

	class, err := f.services.Ontology.Class(ctx, "TST", "http://purl.obolibrary.org/obo/TST_0000002")
	require.NoError(t, err)
	assert.Equal(t, "second", class.PrefLabel)

	_, err = f.services.Ontology.Class(ctx, "TST", "http://purl.obolibrary.org/obo/TST_9")
	requireHTTPError(t, err, http.StatusNotFound,
		"Class with id `http://purl.obolibrary.org/obo/TST_9` not found in ontology `TST`")
}

func TestCreateOntologyEnqueuesProcessing(t *testing.T) {
	f := newFixture(t, true)
	f.store.SeedUser(t, "alice", "")

	sub, err := f.services.Ontology.Create(context.Background(), "TST", newOntology("Test", "alice"), oboSubmission(),
		&service.Upload{Filename: "tst.obo", Reader: strings.NewReader(oboFile)})
	require.NoError(t, err)

	assert.Equal(t, model.StatusUploaded, sub.SubmissionStatus)
	assert.Equal(t, []string{job.TaskProcessSubmission}, f.enqueuer.Types())
}

func TestCreateOntologyAlreadyExists(t *testing.T) {
	f := newFixture(t, true)
	f.store.SeedUser(t, "alice", "")
	f.store.SeedParsedOntology(t, "GO", "alice")

	_, err := f.services.Ontology.Create(context.Background(), "GO", newOntology("Gene", "alice"), oboSubmission(),
		&service.Upload{Filename: "go.obo", Reader: strings.NewReader(oboFile)})
	requireHTTPError(t, err, http.StatusBadRequest,
		"Ontology already exists, to add a new submission, please POST to: /ontologies/GO/submission")
}

func TestCreateOntologyValidation(t *testing.T) {
	f := newFixture(t, true)
	f.store.SeedUser(t, "alice", "")
	ctx := context.Background()

	_, err := f.services.Ontology.Create(ctx, "TST", newOntology("Test", "alice"), service.SubmissionFields{}, nil)
	requireHTTPError(t, err, http.StatusBadRequest, "Validation failed")

	var httpErr *errs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	fields := []string{}
	for _, fe := range httpErr.Errors {
		fields = append(fields, fe.Field)
	}
	assert.Equal(t, []string{"hasOntologyLanguage", "pullLocation"}, fields)

	_, err = f.services.Ontology.Create(ctx, "TST", newOntology("Test", "nobody"), oboSubmission(),
		&service.Upload{Filename: "tst.obo", Reader: strings.NewReader(oboFile)})
	requireHTTPError(t, err, http.StatusBadRequest, "Validation failed")

	_, err = f.store.GetOntology(ctx, "TST")
	assert.Error(t, err, "no ontology is stored when validation fails")
}

func TestCreateSubmission(t *testing.T) {
	f := newFixture(t, true)
	f.store.SeedUser(t, "alice", "")
	f.store.SeedParsedOntology(t, "GO", "alice")
	ctx := context.Background()

	_, err := f.services.Ontology.CreateSubmission(ctx, "NOPE", oboSubmission(), nil)
	requireHTTPError(t, err, http.StatusBadRequest, "You must provide a valid `acronym` to create a new submission")

	sub, err := f.services.Ontology.CreateSubmission(ctx, "GO", service.SubmissionFields{
		HasOntologyLanguage: utils.Ptr("TURTLE"),
		PullLocation:        utils.Ptr("http://example.org/go.ttl"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sub.SubmissionID)
	assert.False(t, sub.HasFile())
	assert.True(t, f.store.HasFormat("TURTLE"))
}

// staleSubmissionIDs hands out submission id 1 for the first stale calls,
// as a request that computed its id before another one committed would.
type staleSubmissionIDs struct {
	*testutil.MemStore
	stale int
}

func (s *staleSubmissionIDs) NextSubmissionID(ctx context.Context, acronym string) (int, error) {
	if s.stale > 0 {
		s.stale--
		return 1, nil
	}
	return s.MemStore.NextSubmissionID(ctx, acronym)
}

func TestCreateSubmissionWithTakenIDKeepsExistingFile(t *testing.T) {
	srv := testutil.NewServer(t)
	store := testutil.NewMemStore()
	ids := &staleSubmissionIDs{MemStore: store}
	services := service.NewServicesWithStores(srv, service.Stores{
		Ontologies: store, Submissions: ids, Classes: store, Mappings: store, Users: store,
	}, &testutil.RecordingEnqueuer{})
	store.SeedUser(t, "alice", "")
	ctx := context.Background()

	first, err := services.Ontology.Create(ctx, "TST", newOntology("Test", "alice"), oboSubmission(),
		&service.Upload{Filename: "a.obo", Reader: strings.NewReader(oboFile)})
	require.NoError(t, err)
	require.True(t, first.HasFile())

	ids.stale = 100
	_, err = services.Ontology.CreateSubmission(ctx, "TST", oboSubmission(),
		&service.Upload{Filename: "b.obo", Reader: strings.NewReader("format-version: 1.2\n")})
	require.Error(t, err)

	assert.FileExists(t, *first.UploadFilePath)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(*first.UploadFilePath), "b.obo"))

	file, err := services.Ontology.Download(ctx, "TST", utils.Ptr(1))
	require.NoError(t, err)
	defer file.Reader.Close()
	body, err := io.ReadAll(file.Reader)
	require.NoError(t, err)
	assert.Equal(t, oboFile, string(body))

	ids.stale = 1
	second, err := services.Ontology.CreateSubmission(ctx, "TST", oboSubmission(),
		&service.Upload{Filename: "b.obo", Reader: strings.NewReader("format-version: 1.2\n")})
	require.NoError(t, err, "a taken id is retried with a fresh one")
	assert.Equal(t, 2, second.SubmissionID)
	assert.FileExists(t, *second.UploadFilePath)
	assert.FileExists(t, *first.UploadFilePath)

	all, err := store.ListSubmissions(ctx, "TST")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// disconnectingStore cancels the request context once the submission row is
// written, like a client hanging up while its upload is processed.
type disconnectingStore struct {
	*testutil.MemStore
	cancel context.CancelFunc
}

func (d *disconnectingStore) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	err := d.MemStore.CreateSubmission(ctx, sub)
	d.cancel()
	return err
}

func TestInlineProcessingOutlivesRequest(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, oboFile)
	}))
	defer remote.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := testutil.NewServer(t)
	store := testutil.NewMemStore()
	submissions := &disconnectingStore{MemStore: store, cancel: cancel}
	services := service.NewServicesWithStores(srv, service.Stores{
		Ontologies: store, Submissions: submissions, Classes: store, Mappings: store, Users: store,
	}, nil)
	store.SeedUser(t, "alice", "")
	store.SeedParsedOntology(t, "GO", "alice")

	sub, err := services.Ontology.CreateSubmission(ctx, "GO", service.SubmissionFields{
		HasOntologyLanguage: utils.Ptr("OBO"),
		PullLocation:        utils.Ptr(remote.URL + "/go.obo"),
	}, nil)
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	stored, err := store.GetSubmission(context.Background(), "GO", sub.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRDF, stored.SubmissionStatus)
	assert.Equal(t, 2, stored.ClassCount)
}

func TestProcessSubmissionFailureIsRecorded(t *testing.T) {
	f := newFixture(t, true)
	f.store.SeedUser(t, "alice", "alice@example.org")
	ctx := context.Background()

	_, err := f.services.Ontology.Create(ctx, "BAD", newOntology("Bad", "alice"),
		service.SubmissionFields{HasOntologyLanguage: utils.Ptr("OWL")},
		&service.Upload{Filename: "bad.txt", Reader: strings.NewReader("just some text")})
	require.NoError(t, err)

	require.NoError(t, f.services.Ontology.ProcessSubmission(ctx, "BAD", 1))

	sub, err := f.store.GetSubmission(ctx, "BAD", 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusErrorRDF, sub.SubmissionStatus)
	require.NotNil(t, sub.ParseError)

	assert.Equal(t, []string{job.TaskProcessSubmission, job.TaskSubmissionEmail}, f.enqueuer.Types())
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t, true)
	f.store.SeedUser(t, "alice", "")
	f.store.SeedParsedOntology(t, "GO", "alice")
	f.store.SeedParsedOntology(t, "HP", "alice")
	ctx := context.Background()

	got, err := f.services.Ontology.Get(ctx, "GO", nil)
	require.NoError(t, err)
	assert.Equal(t, "GO", got.(*model.Ontology).Acronym)

	got, err = f.services.Ontology.Get(ctx, "GO", utils.Ptr(1))
	require.NoError(t, err)
	assert.Equal(t, 1, got.(*model.Submission).SubmissionID)

	_, err = f.services.Ontology.Get(ctx, "GO", utils.Ptr(9))
	requireHTTPError(t, err, http.StatusNotFound, "Submission `9` not found for ontology `GO`")

	_, err = f.services.Ontology.Get(ctx, "XX", nil)
	requireHTTPError(t, err, http.StatusNotFound, "Ontology with acronym `XX` not found")

	all, err := f.services.Ontology.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all.([]model.Ontology), 2)

	latest, err := f.services.Ontology.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, latest.([]model.Submission), 2)
}

func TestPatch(t *testing.T) {
	f := newFixture(t, true)
	f.store.SeedUser(t, "alice", "")
	f.store.SeedParsedOntology(t, "GO", "alice")
	ctx := context.Background()

	require.NoError(t, f.services.Ontology.PatchOntology(ctx, "GO", service.OntologyFields{Flat: utils.Ptr(true)}))
	o, err := f.store.GetOntology(ctx, "GO")
	require.NoError(t, err)
	assert.True(t, o.Flat)
	assert.Equal(t, "GO ontology", o.Name)

	err = f.services.Ontology.PatchOntology(ctx, "XX", service.OntologyFields{})
	requireHTTPError(t, err, http.StatusBadRequest, "You must provide an existing `acronym` to patch")

	require.NoError(t, f.services.Ontology.PatchSubmission(ctx, "GO", 1, service.SubmissionFields{
		Version: utils.Ptr("2024-01-01"),
	}))
	sub, err := f.store.GetSubmission(ctx, "GO", 1)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", *sub.Version)

	err = f.services.Ontology.PatchSubmission(ctx, "GO", 7, service.SubmissionFields{})
	requireHTTPError(t, err, http.StatusBadRequest, "You must provide an existing `submissionId` to patch")
}

func TestDeleteOntologyPrunesMappings(t *testing.T) {
	f := newFixture(t, true)
	f.store.SeedUser(t, "alice", "")
	f.store.SeedParsedOntology(t, "GO", "alice", "http://go/1")
	f.store.SeedParsedOntology(t, "HP", "alice", "http://hp/1")
	ctx := context.Background()

	m, err := f.services.Mapping.Create(ctx, service.MappingInput{
		Terms: []service.TermInput{
			{Ontology: "GO", Terms: []string{"http://go/1"}},
			{Ontology: "HP", Terms: []string{"http://hp/1"}},
		},
		Relation: "http://www.w3.org/2004/02/skos/core#exactMatch",
		Creator:  "alice",
	})
	require.NoError(t, err)

	require.NoError(t, f.services.Ontology.Delete(ctx, "HP"))

	_, err = f.services.Mapping.Get(ctx, m.UUID)
	requireHTTPError(t, err, http.StatusNotFound, "")

	err = f.services.Ontology.Delete(ctx, "HP")
	requireHTTPError(t, err, http.StatusBadRequest, "You must provide an existing `acronym` to delete")

	err = f.services.Ontology.DeleteSubmission(ctx, "GO", 5)
	requireHTTPError(t, err, http.StatusBadRequest, "You must provide an existing `submissionId` to delete")
	require.NoError(t, f.services.Ontology.DeleteSubmission(ctx, "GO", 1))
}

func TestDownloadAndProperties(t *testing.T) {
	f := newFixture(t, false)
	f.store.SeedUser(t, "alice", "")
	ctx := context.Background()

	_, err := f.services.Ontology.Create(ctx, "TST", newOntology("Test", "alice"), oboSubmission(),
		&service.Upload{Filename: "tst.obo", Reader: strings.NewReader(oboFile)})
	require.NoError(t, err)

	file, err := f.services.Ontology.Download(ctx, "TST", nil)
	require.NoError(t, err)
	defer file.Reader.Close()

	assert.Equal(t, "tst.obo", file.Name)
	body, err := io.ReadAll(file.Reader)
	require.NoError(t, err)
	assert.Equal(t, oboFile, string(body))

	props, err := f.services.Ontology.Properties(ctx, "TST")
	require.NoError(t, err)
	assert.Empty(t, props)

	f.store.SeedParsedOntology(t, "GO", "alice")
	_, err = f.services.Ontology.Download(ctx, "GO", nil)
	requireHTTPError(t, err, http.StatusNotFound, "Submission `1` of ontology `GO` has no file")
}

func TestUsers(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	u, err := f.services.User.Create(ctx, "alice", utils.Ptr("alice@example.org"))
	require.NoError(t, err)
	assert.Equal(t, testutil.BaseURI+"/users/alice", u.ID)

	_, err = f.services.User.Create(ctx, "alice", nil)
	requireHTTPError(t, err, http.StatusBadRequest, "User `alice` already exists")

	_, err = f.services.User.Get(ctx, "bob")
	requireHTTPError(t, err, http.StatusNotFound, "User with username `bob` not found")

	users, err := f.services.User.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestPagination(t *testing.T) {
	page, size := service.Pagination(0, 0, 50, 500)
	assert.Equal(t, 1, page)
	assert.Equal(t, 50, size)

	_, size = service.Pagination(3, 1000, 50, 500)
	assert.Equal(t, 500, size)
}
