package service_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/deppfellow/ontology-api/internal/model"
	"github.com/deppfellow/ontology-api/internal/service"
	"github.com/deppfellow/ontology-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exactMatch = "http://www.w3.org/2004/02/skos/core#exactMatch"

func seedMappable(t *testing.T) *fixture {
	t.Helper()

	f := newFixture(t, true)
	f.store.SeedUser(t, "alice", "")
	f.store.SeedParsedOntology(t, "GO", "alice", "http://go/1", "http://go/2")
	f.store.SeedParsedOntology(t, "HP", "alice", "http://hp/1")
	f.store.SeedParsedOntology(t, "DOID", "alice", "http://doid/1")
	return f
}

func validMapping() service.MappingInput {
	return service.MappingInput{
		Terms: []service.TermInput{
			{Ontology: "GO", Terms: []string{"http://go/1"}},
			{Ontology: testutil.BaseURI + "/ontologies/HP", Terms: []string{"http://hp/1"}},
		},
		Relation: exactMatch,
		Creator:  testutil.BaseURI + "/users/alice",
	}
}

func TestCreateMapping(t *testing.T) {
	f := seedMappable(t)
	ctx := context.Background()

	m, err := f.services.Mapping.Create(ctx, validMapping())
	require.NoError(t, err)

	assert.Equal(t, testutil.BaseURI+"/mappings/"+m.UUID, m.ID)
	assert.Equal(t, []string{"GO", "HP"}, m.Ontologies())
	assert.Equal(t, model.ProcessNameREST, m.Process.Name)
	assert.Equal(t, "alice", m.Process.Creator)
	assert.Equal(t, exactMatch, m.Process.Relation)
	assert.False(t, m.Process.Date.IsZero())

	got, err := f.services.Mapping.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.UUID, got.UUID)
}

func TestCreateMappingRules(t *testing.T) {
	f := seedMappable(t)
	f.store.SeedUser(t, "bob", "")
	ctx := context.Background()

	require.NoError(t, f.store.CreateOntology(ctx, &model.Ontology{Acronym: "RAW", AdministeredBy: []string{"bob"}}))

	tests := []struct {
		name    string
		mutate  func(in *service.MappingInput)
		message string
	}{
		{
			name:    "unknown ontology",
			mutate:  func(in *service.MappingInput) { in.Terms[0].Ontology = "NOPE" },
			message: "Ontology with ID `NOPE` not found",
		},
		{
			name:    "term is not an http uri",
			mutate:  func(in *service.MappingInput) { in.Terms[0].Terms = []string{"GO:1"} },
			message: "Term ID GO:1 is not valid, it must be an HTTP URI",
		},
		{
			name:    "ontology without parsed submission",
			mutate:  func(in *service.MappingInput) { in.Terms[1].Ontology = "RAW" },
			message: "Ontology with id RAW does not have parsed valid submission",
		},
		{
			name: "submission is checked before later term ids",
			mutate: func(in *service.MappingInput) {
				in.Terms[1] = service.TermInput{Ontology: "RAW", Terms: []string{"http://a", "ftp://b"}}
			},
			message: "Ontology with id RAW does not have parsed valid submission",
		},
		{
			name:    "class is checked before later term ids",
			mutate:  func(in *service.MappingInput) { in.Terms[0].Terms = []string{"http://go/404", "ftp://b"} },
			message: "Class ID `http://go/404` not found in `" + testutil.BaseURI + "/ontologies/GO/submissions/1`",
		},
		{
			name:    "class not in submission",
			mutate:  func(in *service.MappingInput) { in.Terms[0].Terms = []string{"http://go/404"} },
			message: "Class ID `http://go/404` not found in `" + testutil.BaseURI + "/ontologies/GO/submissions/1`",
		},
		{
			name:    "unknown creator",
			mutate:  func(in *service.MappingInput) { in.Creator = "carol" },
			message: "User with id `carol` not found",
		},
		{
			name:    "relation is not a uri",
			mutate:  func(in *service.MappingInput) { in.Relation = "sameAs" },
			message: "Relation `sameAs` is not a valid URI",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validMapping()
			tt.mutate(&in)

			_, err := f.services.Mapping.Create(ctx, in)
			requireHTTPError(t, err, http.StatusBadRequest, tt.message)
		})
	}
}

func TestGetAndDeleteMapping(t *testing.T) {
	f := seedMappable(t)
	ctx := context.Background()

	_, err := f.services.Mapping.Get(ctx, "not-a-uuid")
	requireHTTPError(t, err, http.StatusNotFound, "Mapping with id `not-a-uuid` not found")

	m, err := f.services.Mapping.Create(ctx, validMapping())
	require.NoError(t, err)

	require.NoError(t, f.services.Mapping.Delete(ctx, m.UUID))

	err = f.services.Mapping.Delete(ctx, m.UUID)
	requireHTTPError(t, err, http.StatusNotFound, "Mapping with id `"+m.UUID+"` not found")
}

func TestMappingsByOntologyAndClass(t *testing.T) {
	f := seedMappable(t)
	ctx := context.Background()

	for range 3 {
		_, err := f.services.Mapping.Create(ctx, validMapping())
		require.NoError(t, err)
	}
	third := validMapping()
	third.Terms[1] = service.TermInput{Ontology: "DOID", Terms: []string{"http://doid/1"}}
	third.Terms[0].Terms = []string{"http://go/2"}
	_, err := f.services.Mapping.Create(ctx, third)
	require.NoError(t, err)

	page, err := f.services.Mapping.ForOntology(ctx, "GO", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, page.TotalCount)
	assert.Equal(t, 2, page.PageCount)
	assert.Len(t, page.Collection, 2)
	assert.Nil(t, page.NextPage)

	_, err = f.services.Mapping.ForOntology(ctx, "XX", 1, 1)
	requireHTTPError(t, err, http.StatusNotFound, "Ontology with acronym `XX` not found")

	byClass, err := f.services.Mapping.ForClass(ctx, "GO", "http://go/2")
	require.NoError(t, err)
	assert.Len(t, byClass, 1)

	_, err = f.services.Mapping.ForClass(ctx, "GO", "http://go/404")
	requireHTTPError(t, err, http.StatusNotFound, "Class with id `http://go/404` not found in ontology `GO`")

	recent, err := f.services.Mapping.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 4)
	assert.Equal(t, []string{"GO", "DOID"}, recent[0].Ontologies())
}

func TestStatisticsAreCachedAndInvalidated(t *testing.T) {
	f := seedMappable(t)
	ctx := context.Background()

	cache := testutil.NewMemCache()
	mappings := service.NewMappingService(f.srv, stores(f.store), cache)

	_, err := mappings.Create(ctx, validMapping())
	require.NoError(t, err)

	counts, err := mappings.OntologyCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"GO": 1, "HP": 1, "DOID": 0}, counts)

	_, err = mappings.OntologyCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Hits)

	between, err := mappings.CountsBetween(ctx, "GO")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"HP": 1}, between)

	popular, err := mappings.PopularClasses(ctx, "GO", 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"http://go/1": 1}, popular)

	users, err := mappings.TopCreators(ctx, "HP", 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"alice": 1}, users)

	_, err = mappings.Create(ctx, validMapping())
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Len())

	require.NoError(t, mappings.RefreshStatistics(ctx))
	assert.Equal(t, 4, cache.Len())

	counts, err = mappings.OntologyCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["GO"])

	_, err = mappings.CountsBetween(ctx, "XX")
	requireHTTPError(t, err, http.StatusNotFound, "")
}
