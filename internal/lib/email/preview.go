package email

// PreviewData holds sample template data for local previews, keyed by template.
var PreviewData = map[Template]any{
	TemplateSubmissionProcessed: SubmissionProcessedData{
		Username:      "alice",
		Acronym:       "GO",
		SubmissionID:  3,
		SubmissionURI: "http://data.ontology-api.local/ontologies/GO/submissions/3",
		Status:        "RDF",
		ClassCount:    47231,
	},
}
