package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/deppfellow/ontology-api/internal/model"
	"github.com/deppfellow/ontology-api/internal/sqlerr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubmissionRepository struct {
	db *pgxpool.Pool
}

const submissionColumns = `ontology, submission_id, uri, status, has_ontology_language,
	pull_location, upload_file_path, content_type, file_size, file_md5,
	description, version, homepage, documentation, publication,
	contact_name, contact_email, released, parse_error, class_count,
	created_at, updated_at`

func scanSubmission(row pgx.Row) (*model.Submission, error) {
	var s model.Submission
	err := row.Scan(
		&s.Ontology,
		&s.SubmissionID,
		&s.ID,
		&s.SubmissionStatus,
		&s.HasOntologyLanguage,
		&s.PullLocation,
		&s.UploadFilePath,
		&s.ContentType,
		&s.FileSize,
		&s.FileMD5,
		&s.Description,
		&s.Version,
		&s.Homepage,
		&s.Documentation,
		&s.Publication,
		&s.ContactName,
		&s.ContactEmail,
		&s.Released,
		&s.ParseError,
		&s.ClassCount,
		&s.CreationDate,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSubmissions(rows pgx.Rows) ([]model.Submission, error) {
	defer rows.Close()

	submissions := []model.Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		submissions = append(submissions, *s)
	}
	return submissions, rows.Err()
}

// ListSubmissions returns the submissions of an ontology, newest first.
func (r *SubmissionRepository) ListSubmissions(ctx context.Context, acronym string) ([]model.Submission, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+submissionColumns+` FROM submissions
		WHERE ontology = $1
		ORDER BY submission_id DESC`, acronym)
	if err != nil {
		return nil, fmt.Errorf("listing submissions of %s: %w", acronym, err)
	}
	return collectSubmissions(rows)
}

// LatestSubmissions returns the latest parsed submission of every ontology that has one.
func (r *SubmissionRepository) LatestSubmissions(ctx context.Context) ([]model.Submission, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT ON (ontology) `+submissionColumns+` FROM submissions
		WHERE status = $1
		ORDER BY ontology, submission_id DESC`, model.StatusRDF)
	if err != nil {
		return nil, fmt.Errorf("listing latest submissions: %w", err)
	}
	return collectSubmissions(rows)
}

func (r *SubmissionRepository) GetSubmission(ctx context.Context, acronym string, submissionID int) (*model.Submission, error) {
	s, err := scanSubmission(r.db.QueryRow(ctx, `
		SELECT `+submissionColumns+` FROM submissions
		WHERE ontology = $1 AND submission_id = $2`, acronym, submissionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sqlerr.NotFound("submissions")
	}
	if err != nil {
		return nil, fmt.Errorf("getting submission %s/%d: %w", acronym, submissionID, err)
	}
	return s, nil
}

// LatestSubmission returns the highest parsed (RDF) submission.
func (r *SubmissionRepository) LatestSubmission(ctx context.Context, acronym string) (*model.Submission, error) {
	s, err := scanSubmission(r.db.QueryRow(ctx, `
		SELECT `+submissionColumns+` FROM submissions
		WHERE ontology = $1 AND status = $2
		ORDER BY submission_id DESC
		LIMIT 1`, acronym, model.StatusRDF))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sqlerr.NotFound("submissions")
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest submission of %s: %w", acronym, err)
	}
	return s, nil
}

func (r *SubmissionRepository) NextSubmissionID(ctx context.Context, acronym string) (int, error) {
	var next int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(submission_id), 0) + 1 FROM submissions WHERE ontology = $1`, acronym,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("computing next submission id of %s: %w", acronym, err)
	}
	return next, nil
}

// EnsureFormat creates the ontology format when it does not exist yet.
func (r *SubmissionRepository) EnsureFormat(ctx context.Context, acronym string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ontology_formats (acronym) VALUES ($1) ON CONFLICT (acronym) DO NOTHING`, acronym)
	if err != nil {
		return fmt.Errorf("ensuring ontology format %s: %w", acronym, err)
	}
	return nil
}

func (r *SubmissionRepository) CreateSubmission(ctx context.Context, s *model.Submission) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO submissions (
			ontology, submission_id, uri, status, has_ontology_language,
			pull_location, upload_file_path, content_type, file_size, file_md5,
			description, version, homepage, documentation, publication,
			contact_name, contact_email, released, parse_error, class_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING created_at, updated_at`,
		s.Ontology, s.SubmissionID, s.ID, s.SubmissionStatus, s.HasOntologyLanguage,
		s.PullLocation, s.UploadFilePath, s.ContentType, s.FileSize, s.FileMD5,
		s.Description, s.Version, s.Homepage, s.Documentation, s.Publication,
		s.ContactName, s.ContactEmail, s.Released, s.ParseError, s.ClassCount,
	).Scan(&s.CreationDate, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating submission %s/%d: %w", s.Ontology, s.SubmissionID, err)
	}
	return nil
}

func (r *SubmissionRepository) UpdateSubmission(ctx context.Context, s *model.Submission) error {
	err := r.db.QueryRow(ctx, `
		UPDATE submissions SET
			status = $3, has_ontology_language = $4, pull_location = $5,
			upload_file_path = $6, content_type = $7, file_size = $8, file_md5 = $9,
			description = $10, version = $11, homepage = $12, documentation = $13,
			publication = $14, contact_name = $15, contact_email = $16, released = $17,
			parse_error = $18, class_count = $19, updated_at = now()
		WHERE ontology = $1 AND submission_id = $2
		RETURNING updated_at`,
		s.Ontology, s.SubmissionID,
		s.SubmissionStatus, s.HasOntologyLanguage, s.PullLocation,
		s.UploadFilePath, s.ContentType, s.FileSize, s.FileMD5,
		s.Description, s.Version, s.Homepage, s.Documentation,
		s.Publication, s.ContactName, s.ContactEmail, s.Released,
		s.ParseError, s.ClassCount,
	).Scan(&s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return sqlerr.NotFound("submissions")
	}
	if err != nil {
		return fmt.Errorf("updating submission %s/%d: %w", s.Ontology, s.SubmissionID, err)
	}
	return nil
}

func (r *SubmissionRepository) DeleteSubmission(ctx context.Context, acronym string, submissionID int) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM submissions WHERE ontology = $1 AND submission_id = $2`, acronym, submissionID)
	if err != nil {
		return fmt.Errorf("deleting submission %s/%d: %w", acronym, submissionID, err)
	}
	if tag.RowsAffected() == 0 {
		return sqlerr.NotFound("submissions")
	}
	return nil
}
