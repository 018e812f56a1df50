package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/deppfellow/ontology-api/internal/errs"
	"github.com/deppfellow/ontology-api/internal/handler"
	"github.com/deppfellow/ontology-api/internal/model"
	"github.com/deppfellow/ontology-api/internal/router"
	"github.com/deppfellow/ontology-api/internal/server"
	"github.com/deppfellow/ontology-api/internal/service"
	"github.com/deppfellow/ontology-api/internal/testutil"
	"github.com/labstack/echo/v4"
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

const exactMatch = "http://www.w3.org/2004/02/skos/core#exactMatch"

type testAPI struct {
	t      *testing.T
	router *echo.Echo
	srv    *server.Server
	store  *testutil.MemStore
}

// newTestAPI serves the full router on a MemStore. Submissions are parsed
// inline since there is no job queue.
func newTestAPI(t *testing.T, configure ...func(s *server.Server)) *testAPI {
	t.Helper()

	srv := testutil.NewServer(t)
	for _, fn := range configure {
		fn(srv)
	}

	store := testutil.NewMemStore()
	services := service.NewServicesWithStores(srv, service.Stores{
		Ontologies:  store,
		Submissions: store,
		Classes:     store,
		Mappings:    store,
		Users:       store,
	}, nil)

	return &testAPI{
		t:      t,
		router: router.NewRouter(srv, handler.NewHandlers(srv, services), services),
		srv:    srv,
		store:  store,
	}
}

func (a *testAPI) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) get(path string) *httptest.ResponseRecorder {
	return a.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (a *testAPI) sendJSON(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var raw []byte
	switch b := body.(type) {
	case string:
		raw = []byte(b)
	default:
		var err error
		raw, err = json.Marshal(body)
		require.NoError(a.t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return a.do(req)
}

func (a *testAPI) sendMultipart(method, path string, fields map[string][]string, filename, content string) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, values := range fields {
		for _, v := range values {
			require.NoError(a.t, w.WriteField(name, v))
		}
	}
	if filename != "" {
		part, err := w.CreateFormFile("ontology_file", filename)
		require.NoError(a.t, err)
		_, err = io.WriteString(part, content)
		require.NoError(a.t, err)
	}
	require.NoError(a.t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return a.do(req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) errs.HTTPError {
	t.Helper()

	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[errs.HTTPError](t, rec)
	assert.Equal(t, status, body.Status)
	if message != "" {
		assert.Equal(t, message, body.Message)
	}
	return body
}

func TestOntologyLifecycle(t *testing.T) {
	api := newTestAPI(t)
	api.store.SeedUser(t, "alice", "")

	fields := map[string][]string{
		"name":                {"Test ontology"},
		"administeredBy":      {"alice"},
		"hasOntologyLanguage": {"OBO"},
		"released":            {"2024-05-01"},
	}

	rec := api.sendMultipart(http.MethodPut, "/ontologies/TST", fields, "tst.obo", oboFile)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.Submission](t, rec)
	assert.Equal(t, 1, created.SubmissionID)
	assert.Equal(t, testutil.BaseURI+"/ontologies/TST/submissions/1", created.ID)
	require.NotNil(t, created.Released)
	assert.Equal(t, "2024-05-01", created.Released.Format("2006-01-02"))

	rec = api.sendMultipart(http.MethodPut, "/ontologies/TST", fields, "tst.obo", oboFile)
	requireError(t, rec, http.StatusBadRequest,
		"Ontology already exists, to add a new submission, please POST to: /ontologies/TST/submission")

	rec = api.get("/ontologies/TST")
	require.Equal(t, http.StatusOK, rec.Code)
	ontology := decode[model.Ontology](t, rec)
	assert.Equal(t, "Test ontology", ontology.Name)
	assert.Equal(t, []string{"alice"}, ontology.AdministeredBy)

	rec = api.get("/ontologies/TST?ontology_submission_id=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusRDF, decode[model.Submission](t, rec).SubmissionStatus)

	requireError(t, api.get("/ontologies/TST?ontology_submission_id=9"), http.StatusNotFound,
		"Submission `9` not found for ontology `TST`")
	requireError(t, api.get("/ontologies/TST?ontology_submission_id=abc"), http.StatusBadRequest,
		"ontology_submission_id must be a positive integer")

	rec = api.get("/ontologies/TST/classes?pagesize=1&page=2")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[model.Page[model.Class]](t, rec)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, 2, page.PageCount)
	require.Len(t, page.Collection, 1)
	assert.Equal(t, "second", page.Collection[0].PrefLabel)

	classID := "http://purl.obolibrary.org/obo/TST_0000001"
	rec = api.get("/ontologies/TST/classes/" + url.PathEscape(classID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, classID, decode[model.Class](t, rec).ID)

	rec = api.get("/ontologies/TST/download")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "tst.obo")
	assert.Equal(t, oboFile, rec.Body.String())

	rec = api.sendJSON(http.MethodPatch, "/ontologies/TST", map[string]any{"name": "Renamed"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, "Renamed", decode[model.Ontology](t, api.get("/ontologies/TST")).Name)

	rec = api.sendJSON(http.MethodPatch, "/ontologies/TST/1", map[string]any{"version": "2.0"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = api.sendMultipart(http.MethodPost, "/ontologies/TST/submissions",
		map[string][]string{"hasOntologyLanguage": {"OBO"}}, "tst-v2.obo", oboFile)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[model.Submission](t, rec).SubmissionID)

	rec = api.get("/ontologies/TST/submissions")
	require.Equal(t, http.StatusOK, rec.Code)
	submissions := decode[[]model.Submission](t, rec)
	require.Len(t, submissions, 2)
	assert.Equal(t, 2, submissions[0].SubmissionID)
	assert.Equal(t, "2.0", *submissions[1].Version)

	rec = api.do(httptest.NewRequest(http.MethodDelete, "/ontologies/TST/1", nil))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	requireError(t, api.do(httptest.NewRequest(http.MethodDelete, "/ontologies/TST/1", nil)), http.StatusBadRequest,
		"You must provide an existing `submissionId` to delete")

	rec = api.do(httptest.NewRequest(http.MethodDelete, "/ontologies/TST", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	requireError(t, api.get("/ontologies/TST"), http.StatusNotFound, "Ontology with acronym `TST` not found")
}

func TestCreateOntologyFromPullLocation(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, oboFile)
	}))
	defer remote.Close()

	api := newTestAPI(t)
	api.store.SeedUser(t, "alice", "")

	rec := api.sendJSON(http.MethodPut, "/ontologies/PULL", map[string]any{
		"name":                "Pulled",
		"administeredBy":      []string{"alice"},
		"hasOntologyLanguage": "OBO",
		"pullLocation":        remote.URL + "/pull.obo",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.get("/ontologies/PULL/classes")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[model.Page[model.Class]](t, rec).TotalCount)

	rec = api.get("/ontologies?include=latest_submission")
	require.Equal(t, http.StatusOK, rec.Code)
	latest := decode[[]model.Submission](t, rec)
	require.Len(t, latest, 1)
	assert.Equal(t, "PULL", latest[0].Ontology)
}

func TestCreateOntologyValidation(t *testing.T) {
	api := newTestAPI(t)
	api.store.SeedUser(t, "alice", "")

	tests := []struct {
		name    string
		path    string
		body    map[string]any
		message string
		field   string
	}{
		{
			name:    "invalid acronym",
			path:    "/ontologies/1bad",
			body:    map[string]any{"name": "x", "administeredBy": []string{"alice"}},
			message: "Validation failed",
			field:   "acronym",
		},
		{
			name:    "missing name",
			path:    "/ontologies/NEW",
			body:    map[string]any{"administeredBy": []string{"alice"}},
			message: "Validation failed",
			field:   "name",
		},
		{
			name:    "missing administrators",
			path:    "/ontologies/NEW",
			body:    map[string]any{"name": "x"},
			message: "Validation failed",
			field:   "administeredBy",
		},
		{
			name:    "bad release date",
			path:    "/ontologies/NEW",
			body:    map[string]any{"name": "x", "administeredBy": []string{"alice"}, "released": "soon"},
			message: "released must be a date (YYYY-MM-DD)",
			field:   "released",
		},
		{
			name:    "no file and no pull location",
			path:    "/ontologies/NEW",
			body:    map[string]any{"name": "x", "administeredBy": []string{"alice"}, "hasOntologyLanguage": "OWL"},
			message: "Validation failed",
			field:   "pullLocation",
		},
		{
			name: "unknown administrator",
			path: "/ontologies/NEW",
			body: map[string]any{
				"name":                "x",
				"administeredBy":      []string{"mallory"},
				"hasOntologyLanguage": "OWL",
				"pullLocation":        "http://example.org/o.owl",
			},
			message: "Validation failed",
			field:   "administeredBy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := requireError(t, api.sendJSON(http.MethodPut, tt.path, tt.body), http.StatusBadRequest, tt.message)

			fields := make([]string, 0, len(body.Errors))
			for _, fe := range body.Errors {
				fields = append(fields, fe.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}

	requireError(t, api.get("/ontologies/NEW"), http.StatusNotFound, "")
}

func TestCreateExistingOntologyReportsConflictFirst(t *testing.T) {
	api := newTestAPI(t)
	api.store.SeedUser(t, "alice", "")
	api.store.SeedParsedOntology(t, "GO", "alice")

	const message = "Ontology already exists, to add a new submission, please POST to: /ontologies/GO/submission"

	body := requireError(t, api.sendJSON(http.MethodPut, "/ontologies/GO",
		map[string]any{"hasOntologyLanguage": "OWL"}), http.StatusBadRequest, message)
	assert.Empty(t, body.Errors)

	requireError(t, api.sendJSON(http.MethodPut, "/ontologies/GO",
		map[string]any{"contactEmail": "not-an-email", "released": "soon"}), http.StatusBadRequest, message)

	requireError(t, api.sendMultipart(http.MethodPut, "/ontologies/GO",
		map[string][]string{"hasOntologyLanguage": {"OBO"}}, "go.obo", oboFile),
		http.StatusBadRequest, message)
}

func TestSubmissionRoutesOnMissingOntology(t *testing.T) {
	api := newTestAPI(t)

	requireError(t, api.sendMultipart(http.MethodPost, "/ontologies/NOPE/submissions",
		map[string][]string{"hasOntologyLanguage": {"OBO"}}, "x.obo", oboFile),
		http.StatusBadRequest, "You must provide a valid `acronym` to create a new submission")
	requireError(t, api.sendJSON(http.MethodPatch, "/ontologies/NOPE", map[string]any{"name": "x"}),
		http.StatusBadRequest, "You must provide an existing `acronym` to patch")
	requireError(t, api.sendJSON(http.MethodPatch, "/ontologies/NOPE/1", map[string]any{"version": "1"}),
		http.StatusBadRequest, "You must provide an existing `acronym` to patch")
	requireError(t, api.do(httptest.NewRequest(http.MethodDelete, "/ontologies/NOPE", nil)),
		http.StatusBadRequest, "You must provide an existing `acronym` to delete")
	requireError(t, api.get("/ontologies/NOPE/submissions"), http.StatusNotFound,
		"Ontology with acronym `NOPE` not found")
	requireError(t, api.get("/ontologies/NOPE/properties"), http.StatusNotFound, "")
}

func seedMappable(t *testing.T, api *testAPI) {
	t.Helper()

	api.store.SeedUser(t, "alice", "")
	api.store.SeedParsedOntology(t, "GO", "alice", "http://go/1", "http://go/2")
	api.store.SeedParsedOntology(t, "HP", "alice", "http://hp/1")
}

func mappingBody() map[string]any {
	return map[string]any{
		"terms": []map[string]any{
			{"ontology": "GO", "term": []string{"http://go/1"}},
			{"ontology": testutil.BaseURI + "/ontologies/HP", "term": []string{"http://hp/1"}},
		},
		"relation": exactMatch,
		"creator":  testutil.BaseURI + "/users/alice",
		"comment":  "same thing",
	}
}

func TestMappingRoutes(t *testing.T) {
	api := newTestAPI(t)
	seedMappable(t, api)

	rec := api.sendJSON(http.MethodPost, "/mappings", mappingBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.Mapping](t, rec)
	require.True(t, strings.HasPrefix(created.ID, testutil.BaseURI+"/mappings/"))
	assert.Equal(t, model.ProcessNameREST, created.Process.Name)
	assert.Equal(t, "alice", created.Process.Creator)
	require.NotNil(t, created.Process.Comment)
	assert.Equal(t, "same thing", *created.Process.Comment)

	uuid := strings.TrimPrefix(created.ID, testutil.BaseURI+"/mappings/")

	rec = api.get("/mappings/" + url.PathEscape(created.ID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, created.ID, decode[model.Mapping](t, rec).ID)

	rec = api.get("/mappings/" + uuid)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.get("/ontologies/GO/mappings")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[model.Page[model.Mapping]](t, rec)
	assert.Equal(t, 1, page.TotalCount)

	rec = api.get("/ontologies/HP/classes/" + url.PathEscape("http://hp/1") + "/mappings")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]model.Mapping](t, rec), 1)

	requireError(t, api.get("/ontologies/HP/classes/"+url.PathEscape("http://hp/404")+"/mappings"),
		http.StatusNotFound, "Class with id `http://hp/404` not found in ontology `HP`")

	rec = api.get("/mappings/statistics/ontologies")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"GO": 1, "HP": 1}, decode[map[string]int](t, rec))

	rec = api.get("/mappings/statistics/ontologies/GO")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"HP": 1}, decode[map[string]int](t, rec))

	rec = api.get("/mappings/statistics/ontologies/GO/popular_classes?size=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"http://go/1": 1}, decode[map[string]int](t, rec))

	rec = api.get("/mappings/statistics/ontologies/GO/users")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"alice": 1}, decode[map[string]int](t, rec))

	rec = api.get("/mappings/statistics/recent?size=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Mapping](t, rec), 1)

	rec = api.do(httptest.NewRequest(http.MethodDelete, "/mappings/"+uuid, nil))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	requireError(t, api.get("/mappings/"+uuid), http.StatusNotFound, "Mapping with id `"+uuid+"` not found")
}

func TestMappingUnsupportedOperations(t *testing.T) {
	api := newTestAPI(t)

	requireError(t, api.get("/mappings"), http.StatusMethodNotAllowed,
		"To traverse all mappings one should traverse all mappings by ontology.")
	requireError(t, api.sendJSON(http.MethodPut, "/mappings/abc", map[string]any{}), http.StatusMethodNotAllowed,
		"put is not supported for mappings")
	requireError(t, api.sendJSON(http.MethodPatch, "/mappings/abc", map[string]any{}), http.StatusMethodNotAllowed,
		"patch is not supported for mappings")
}

func TestCreateMappingStructuralValidation(t *testing.T) {
	api := newTestAPI(t)
	seedMappable(t, api)

	tests := []struct {
		name    string
		body    any
		message string
	}{
		{
			name:    "no terms",
			body:    map[string]any{"relation": exactMatch, "creator": "alice"},
			message: "Input does not contain terms",
		},
		{
			name: "one term",
			body: map[string]any{
				"terms":    []map[string]any{{"ontology": "GO", "term": []string{"http://go/1"}}},
				"relation": exactMatch,
				"creator":  "alice",
			},
			message: "Input does not contain at least 2 terms",
		},
		{
			name: "no relation",
			body: map[string]any{
				"terms":   mappingBody()["terms"],
				"creator": "alice",
			},
			message: "Input does not contain mapping relation",
		},
		{
			name: "no creator",
			body: map[string]any{
				"terms":    mappingBody()["terms"],
				"relation": exactMatch,
			},
			message: "Input does not contain user creator ID",
		},
		{
			name: "term without ontology",
			body: map[string]any{
				"terms": []map[string]any{
					{"term": []string{"http://go/1"}},
					{"ontology": "HP", "term": []string{"http://hp/1"}},
				},
				"relation": exactMatch,
				"creator":  "alice",
			},
			message: "Every term must have at least one term ID and a ontology ID or acronym",
		},
		{
			name: "term ids not in an array",
			body: map[string]any{
				"terms": []map[string]any{
					{"ontology": "GO", "term": "http://go/1"},
					{"ontology": "HP", "term": []string{"http://hp/1"}},
				},
				"relation": exactMatch,
				"creator":  "alice",
			},
			message: "Term IDs must be contained in arrays",
		},
		{
			name: "class missing from latest submission",
			body: map[string]any{
				"terms": []map[string]any{
					{"ontology": "GO", "term": []string{"http://go/9"}},
					{"ontology": "HP", "term": []string{"http://hp/1"}},
				},
				"relation": exactMatch,
				"creator":  "alice",
			},
			message: "Class ID `http://go/9` not found in `" + testutil.BaseURI + "/ontologies/GO/submissions/1`",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireError(t, api.sendJSON(http.MethodPost, "/mappings", tt.body), http.StatusBadRequest, tt.message)
		})
	}

	requireError(t, api.sendJSON(http.MethodPost, "/mappings", "{"), http.StatusBadRequest, "")
}

func TestUserRoutes(t *testing.T) {
	api := newTestAPI(t)

	rec := api.sendJSON(http.MethodPut, "/users/bob", map[string]any{"email": "bob@example.org"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decode[model.User](t, rec)
	assert.Equal(t, testutil.BaseURI+"/users/bob", user.ID)
	require.NotNil(t, user.Email)
	assert.Equal(t, "bob@example.org", *user.Email)

	requireError(t, api.sendJSON(http.MethodPut, "/users/bob", map[string]any{}), http.StatusBadRequest,
		"User `bob` already exists")
	requireError(t, api.sendJSON(http.MethodPut, "/users/eve", map[string]any{"email": "nope"}), http.StatusBadRequest,
		"Validation failed")

	rec = api.get("/users")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.User](t, rec), 1)

	rec = api.get("/users/bob")
	require.Equal(t, http.StatusOK, rec.Code)
	requireError(t, api.get("/users/nobody"), http.StatusNotFound, "User with username `nobody` not found")
}

func TestStatusReportsMissingDatabase(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := api.do(req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "unhealthy", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "unhealthy", checks["database"].(map[string]any)["status"])
	assert.NotContains(t, checks, "redis")
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)

	require.Equal(t, http.StatusNotFound, api.get("/users/nobody").Code)

	rec := api.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(),
		`ontology_api_http_requests_total{method="GET",route="/users/:username",status="404"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t)

	body := requireError(t, api.get("/nope"), http.StatusNotFound, "Route not found")
	assert.Equal(t, "NOT_FOUND", body.Code)
}

func TestWriteRoutesAreRateLimited(t *testing.T) {
	api := newTestAPI(t, func(s *server.Server) {
		s.Config.Repository.RateLimit = 0.001
		s.Config.Repository.RateBurst = 1
	})

	rec := api.sendJSON(http.MethodPut, "/users/one", map[string]any{})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	requireError(t, api.sendJSON(http.MethodPut, "/users/two", map[string]any{}), http.StatusTooManyRequests, "")

	rec = api.get("/users")
	assert.Equal(t, http.StatusOK, rec.Code)
}
