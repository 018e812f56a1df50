package email

import "fmt"

// SubmissionProcessedData fills the submission_processed template.
type SubmissionProcessedData struct {
	Username      string
	Acronym       string
	SubmissionID  int
	SubmissionURI string
	Status        string
	ClassCount    int
	ParseError    string
}

// Succeeded reports whether the submission was parsed.
func (d SubmissionProcessedData) Succeeded() bool {
	return d.ParseError == ""
}

// SendSubmissionProcessed tells an administrator how parsing of a submission went.
func (c *Client) SendSubmissionProcessed(to string, data SubmissionProcessedData) error {
	subject := fmt.Sprintf("[%s] submission %d parsed", data.Acronym, data.SubmissionID)
	if !data.Succeeded() {
		subject = fmt.Sprintf("[%s] submission %d failed to parse", data.Acronym, data.SubmissionID)
	}

	return c.SendEmail(to, subject, TemplateSubmissionProcessed, data)
}
