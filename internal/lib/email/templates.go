package email

// Template names an embedded templates/{name}.html file.
type Template string

const (
	TemplateSubmissionProcessed Template = "submission_processed"
)
