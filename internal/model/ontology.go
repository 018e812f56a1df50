// Package model holds the domain types shared by the repository, service and
// handler layers. JSON tags define the wire format returned to clients.
package model

import (
	"strconv"
	"time"
)

// Submission statuses.
const (
	StatusUploaded = "UPLOADED"
	StatusRDF      = "RDF"
	StatusErrorRDF = "ERROR_RDF"
)

// Ontology formats seeded by the initial migration. Others are created on first use.
const (
	FormatOWL  = "OWL"
	FormatOBO  = "OBO"
	FormatSKOS = "SKOS"
	FormatUMLS = "UMLS"
)

// Ontology is a named structured vocabulary identified by its acronym.
type Ontology struct {
	ID                 string    `json:"@id"`
	Acronym            string    `json:"acronym"`
	Name               string    `json:"name"`
	AdministeredBy     []string  `json:"administeredBy"`
	SummaryOnly        bool      `json:"summaryOnly"`
	Flat               bool      `json:"flat"`
	ViewingRestriction string    `json:"viewingRestriction,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Submission is one uploaded version of an ontology.
type Submission struct {
	ID                  string     `json:"@id"`
	Ontology            string     `json:"ontology"`
	SubmissionID        int        `json:"submissionId"`
	SubmissionStatus    string     `json:"submissionStatus"`
	HasOntologyLanguage string     `json:"hasOntologyLanguage"`
	PullLocation        *string    `json:"pullLocation"`
	UploadFilePath      *string    `json:"uploadFilePath,omitempty"`
	ContentType         *string    `json:"contentType,omitempty"`
	FileSize            int64      `json:"fileSize,omitempty"`
	FileMD5             *string    `json:"fileMD5,omitempty"`
	Description         *string    `json:"description"`
	Version             *string    `json:"version"`
	Homepage            *string    `json:"homepage"`
	Documentation       *string    `json:"documentation"`
	Publication         *string    `json:"publication"`
	ContactName         *string    `json:"contactName"`
	ContactEmail        *string    `json:"contactEmail"`
	Released            *time.Time `json:"released"`
	ParseError          *string    `json:"parseError,omitempty"`
	ClassCount          int        `json:"classCount"`
	CreationDate        time.Time  `json:"creationDate"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// HasFile reports whether an uploaded file is stored for the submission.
func (s *Submission) HasFile() bool {
	return s.UploadFilePath != nil && *s.UploadFilePath != ""
}

// OntologyURI is the URI an ontology is published under.
func OntologyURI(baseURI, acronym string) string {
	return baseURI + "/ontologies/" + acronym
}

// SubmissionURI is the URI a submission is published under.
func SubmissionURI(baseURI, acronym string, submissionID int) string {
	return OntologyURI(baseURI, acronym) + "/submissions/" + strconv.Itoa(submissionID)
}

// Class is a term parsed from a submission.
type Class struct {
	ID         string   `json:"@id"`
	PrefLabel  string   `json:"prefLabel"`
	Synonyms   []string `json:"synonym"`
	Definition []string `json:"definition"`
	Obsolete   bool     `json:"obsolete"`
}

// Property is an object, datatype or annotation property parsed from a submission.
type Property struct {
	ID         string   `json:"@id"`
	Label      string   `json:"label"`
	Type       string   `json:"type"`
	Definition []string `json:"definition"`
}

// Property types.
const (
	PropertyObject     = "ObjectProperty"
	PropertyDatatype   = "DatatypeProperty"
	PropertyAnnotation = "AnnotationProperty"
)

// User is an account that administers ontologies or creates mappings.
type User struct {
	ID        string    `json:"@id"`
	Username  string    `json:"username"`
	Email     *string   `json:"email"`
	CreatedAt time.Time `json:"created"`
}

// UserURI is the URI a user is published under.
func UserURI(baseURI, username string) string {
	return baseURI + "/users/" + username
}
