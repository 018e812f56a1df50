package model

import "time"

// ProcessNameREST names every mapping process created through the API.
const ProcessNameREST = "REST Mapping"

// TermMapping is the side of a mapping that belongs to one ontology.
type TermMapping struct {
	Ontology string   `json:"ontology"`
	Terms    []string `json:"term"`
}

// MappingProcess is the provenance record of a mapping.
type MappingProcess struct {
	UUID       string    `json:"-"`
	ID         string    `json:"@id"`
	Name       string    `json:"name"`
	Creator    string    `json:"creator"`
	Relation   string    `json:"relation"`
	Source     *string   `json:"source"`
	SourceName *string   `json:"source_name"`
	Comment    *string   `json:"comment"`
	Date       time.Time `json:"date"`
}

// Mapping relates terms from two or more ontologies.
type Mapping struct {
	UUID    string         `json:"-"`
	ID      string         `json:"@id"`
	Terms   []TermMapping  `json:"terms"`
	Process MappingProcess `json:"process"`
}

// Ontologies returns the acronyms on every side of the mapping.
func (m *Mapping) Ontologies() []string {
	out := make([]string, 0, len(m.Terms))
	for _, t := range m.Terms {
		out = append(out, t.Ontology)
	}
	return out
}

// MappingURI is the URI a mapping is published under.
func MappingURI(baseURI, id string) string {
	return baseURI + "/mappings/" + id
}

// MappingProcessURI is the URI a mapping process is published under.
func MappingProcessURI(baseURI, id string) string {
	return baseURI + "/mapping_processes/" + id
}
