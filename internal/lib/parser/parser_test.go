package parser

import (
	"strings"
	"testing"

	"github.com/deppfellow/ontology-api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owlDocument = `<?xml version="1.0"?>
<rdf:RDF xmlns="http://example.org/onto#"
     xml:base="http://example.org/onto"
     xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
     xmlns:rdfs="http://www.w3.org/2000/01/rdf-schema#"
     xmlns:owl="http://www.w3.org/2002/07/owl#"
     xmlns:skos="http://www.w3.org/2004/02/skos/core#"
     xmlns:obo="http://purl.obolibrary.org/obo/"
     xmlns:oboInOwl="http://www.geneontology.org/formats/oboInOwl#">
  <owl:Ontology rdf:about="http://example.org/onto"/>
  <owl:Class rdf:about="http://example.org/onto#Heart">
    <rdfs:label xml:lang="fr">Coeur</rdfs:label>
    <rdfs:label xml:lang="en">Heart</rdfs:label>
    <obo:IAO_0000115>A hollow muscular organ.</obo:IAO_0000115>
    <oboInOwl:hasExactSynonym>cardium</oboInOwl:hasExactSynonym>
  </owl:Class>
  <owl:Class rdf:ID="Lung">
    <skos:prefLabel>Lung</skos:prefLabel>
    <rdfs:label>Pulmo</rdfs:label>
    <owl:deprecated rdf:datatype="http://www.w3.org/2001/XMLSchema#boolean">true</owl:deprecated>
  </owl:Class>
  <rdf:Description rdf:about="#Kidney">
    <rdf:type rdf:resource="http://www.w3.org/2002/07/owl#Class"/>
    <rdfs:label>Kidney</rdfs:label>
  </rdf:Description>
  <owl:Class>
    <rdfs:label>anonymous</rdfs:label>
  </owl:Class>
  <owl:ObjectProperty rdf:about="http://example.org/onto#partOf">
    <rdfs:label>part of</rdfs:label>
    <rdfs:comment>Parthood.</rdfs:comment>
  </owl:ObjectProperty>
  <owl:AnnotationProperty rdf:about="http://purl.obolibrary.org/obo/IAO_0000115">
    <rdfs:label>definition</rdfs:label>
  </owl:AnnotationProperty>
</rdf:RDF>`

const skosDocument = `<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
     xmlns:skos="http://www.w3.org/2004/02/skos/core#">
  <skos:Concept rdf:about="http://example.org/thesaurus/c1">
    <skos:prefLabel xml:lang="en">Concept one</skos:prefLabel>
    <skos:altLabel>first concept</skos:altLabel>
    <skos:definition>The first concept.</skos:definition>
  </skos:Concept>
</rdf:RDF>`

const oboDocument = `format-version: 1.2
ontology: go

[Term]
id: GO:0000001
name: mitochondrion inheritance
def: "The distribution of \"mitochondria\" into daughter cells." [GOC:mcc]
synonym: "mitochondrial inheritance" EXACT []
is_a: GO:0048308 ! organelle inheritance

[Term]
id: GO:0000005
name: obsolete ribosomal chaperone activity
is_obsolete: true

[Typedef]
id: part_of
name: part of
`

func classByID(t *testing.T, classes []model.Class, id string) model.Class {
	t.Helper()
	for _, c := range classes {
		if c.ID == id {
			return c
		}
	}
	require.Failf(t, "class not found", "%s not in %v", id, classes)
	return model.Class{}
}

func TestParseRDFXML(t *testing.T) {
	res, err := Parse(model.FormatOWL, strings.NewReader(owlDocument))
	require.NoError(t, err)

	require.Len(t, res.Classes, 3)
	assert.Equal(t, "http://example.org/onto#Heart", res.Classes[0].ID)

	heart := classByID(t, res.Classes, "http://example.org/onto#Heart")
	assert.Equal(t, "Heart", heart.PrefLabel)
	assert.Equal(t, []string{"A hollow muscular organ."}, heart.Definition)
	assert.Equal(t, []string{"cardium"}, heart.Synonyms)

	lung := classByID(t, res.Classes, "http://example.org/onto#Lung")
	assert.Equal(t, "Lung", lung.PrefLabel)
	assert.True(t, lung.Obsolete)
	assert.Contains(t, lung.Synonyms, "Pulmo")

	kidney := classByID(t, res.Classes, "http://example.org/onto#Kidney")
	assert.Equal(t, "Kidney", kidney.PrefLabel)

	require.Len(t, res.Properties, 2)
	assert.Equal(t, "http://example.org/onto#partOf", res.Properties[0].ID)
	assert.Equal(t, model.PropertyObject, res.Properties[0].Type)
	assert.Equal(t, "part of", res.Properties[0].Label)
	assert.Equal(t, []string{"Parthood."}, res.Properties[0].Definition)
	assert.Equal(t, model.PropertyAnnotation, res.Properties[1].Type)
}

const protegeDocument = `<?xml version="1.0"?>
<!DOCTYPE rdf:RDF [
    <!ENTITY obo "http://purl.obolibrary.org/obo/" >
    <!ENTITY owl "http://www.w3.org/2002/07/owl#" >
    <!ENTITY rdfs 'http://www.w3.org/2000/01/rdf-schema#' >
]>
<rdf:RDF xmlns="http://purl.obolibrary.org/obo/go.owl#"
     xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
     xmlns:owl="&owl;"
     xmlns:rdfs="&rdfs;"
     xmlns:obo="&obo;">
    <owl:Ontology rdf:about="&obo;go.owl"/>
    <owl:Class rdf:about="&obo;GO_0000001">
        <rdfs:label>mitochondrion inheritance</rdfs:label>
        <obo:IAO_0000115>The distribution of mitochondria.</obo:IAO_0000115>
    </owl:Class>
    <rdf:Description rdf:about="&obo;GO_0000002">
        <rdf:type rdf:resource="&owl;Class"/>
        <rdfs:label>mitochondrial genome maintenance</rdfs:label>
    </rdf:Description>
</rdf:RDF>`

func TestParseRDFXMLExpandsDeclaredEntities(t *testing.T) {
	res, err := Parse(model.FormatOWL, strings.NewReader(protegeDocument))
	require.NoError(t, err)

	require.Len(t, res.Classes, 2)
	first := classByID(t, res.Classes, "http://purl.obolibrary.org/obo/GO_0000001")
	assert.Equal(t, "mitochondrion inheritance", first.PrefLabel)
	assert.Equal(t, []string{"The distribution of mitochondria."}, first.Definition)

	second := classByID(t, res.Classes, "http://purl.obolibrary.org/obo/GO_0000002")
	assert.Equal(t, "mitochondrial genome maintenance", second.PrefLabel)
}

func TestDeclaredEntities(t *testing.T) {
	assert.Equal(t, map[string]string{
		"obo":  "http://purl.obolibrary.org/obo/",
		"owl":  "http://www.w3.org/2002/07/owl#",
		"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
	}, declaredEntities([]byte(protegeDocument)))

	assert.Nil(t, declaredEntities([]byte(owlDocument)))
}

func TestParseSKOS(t *testing.T) {
	res, err := Parse(model.FormatSKOS, strings.NewReader(skosDocument))
	require.NoError(t, err)

	require.Len(t, res.Classes, 1)
	assert.Equal(t, "Concept one", res.Classes[0].PrefLabel)
	assert.Equal(t, []string{"first concept"}, res.Classes[0].Synonyms)
	assert.Equal(t, []string{"The first concept."}, res.Classes[0].Definition)
}

func TestParseOBO(t *testing.T) {
	res, err := Parse(model.FormatOBO, strings.NewReader(oboDocument))
	require.NoError(t, err)

	require.Len(t, res.Classes, 2)
	inheritance := classByID(t, res.Classes, "http://purl.obolibrary.org/obo/GO_0000001")
	assert.Equal(t, "mitochondrion inheritance", inheritance.PrefLabel)
	assert.Equal(t, []string{`The distribution of "mitochondria" into daughter cells.`}, inheritance.Definition)
	assert.Equal(t, []string{"mitochondrial inheritance"}, inheritance.Synonyms)

	obsolete := classByID(t, res.Classes, "http://purl.obolibrary.org/obo/GO_0000005")
	assert.True(t, obsolete.Obsolete)

	require.Len(t, res.Properties, 1)
	assert.Equal(t, "http://purl.obolibrary.org/obo/go#part_of", res.Properties[0].ID)
	assert.Equal(t, "part of", res.Properties[0].Label)
}

func TestParseSniffsOBO(t *testing.T) {
	res, err := Parse(model.FormatUMLS, strings.NewReader(oboDocument))
	require.NoError(t, err)
	assert.Len(t, res.Classes, 2)
}

func TestParseUnsupported(t *testing.T) {
	_, err := Parse(model.FormatOWL, strings.NewReader(`@prefix owl: <http://www.w3.org/2002/07/owl#> .`))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Parse(model.FormatOWL, strings.NewReader(`<html><body>not rdf</body></html>`))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Parse(model.FormatOWL, strings.NewReader(`<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">`))
	assert.Error(t, err)
}

func TestOBOIRI(t *testing.T) {
	assert.Equal(t, "http://purl.obolibrary.org/obo/GO_0000001", oboIRI("GO:0000001", "go"))
	assert.Equal(t, "http://purl.obolibrary.org/obo/go#part_of", oboIRI("part_of", "go"))
	assert.Equal(t, "http://example.org/x", oboIRI("http://example.org/x", "go"))
}
