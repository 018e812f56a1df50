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

// ClassRepository stores the classes and properties parsed from submissions.
type ClassRepository struct {
	db *pgxpool.Pool
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// ReplaceClasses swaps the stored classes of a submission for classes.
func (r *ClassRepository) ReplaceClasses(ctx context.Context, acronym string, submissionID int, classes []model.Class) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM classes WHERE ontology = $1 AND submission_id = $2`, acronym, submissionID); err != nil {
			return fmt.Errorf("clearing classes of %s/%d: %w", acronym, submissionID, err)
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"classes"},
			[]string{"ontology", "submission_id", "uri", "pref_label", "synonyms", "definition", "obsolete"},
			pgx.CopyFromSlice(len(classes), func(i int) ([]any, error) {
				c := classes[i]
				return []any{acronym, submissionID, c.ID, c.PrefLabel, nonNil(c.Synonyms), nonNil(c.Definition), c.Obsolete}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copying classes of %s/%d: %w", acronym, submissionID, err)
		}
		return nil
	})
}

// ListClasses returns one page of classes ordered by URI, and the total count.
func (r *ClassRepository) ListClasses(ctx context.Context, acronym string, submissionID, page, size int) ([]model.Class, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM classes WHERE ontology = $1 AND submission_id = $2`, acronym, submissionID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting classes of %s/%d: %w", acronym, submissionID, err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT uri, pref_label, synonyms, definition, obsolete FROM classes
		WHERE ontology = $1 AND submission_id = $2
		ORDER BY uri
		LIMIT $3 OFFSET $4`, acronym, submissionID, size, model.Offset(page, size))
	if err != nil {
		return nil, 0, fmt.Errorf("listing classes of %s/%d: %w", acronym, submissionID, err)
	}
	defer rows.Close()

	classes := []model.Class{}
	for rows.Next() {
		var c model.Class
		if err := rows.Scan(&c.ID, &c.PrefLabel, &c.Synonyms, &c.Definition, &c.Obsolete); err != nil {
			return nil, 0, fmt.Errorf("scanning class: %w", err)
		}
		classes = append(classes, c)
	}

	return classes, total, rows.Err()
}

func (r *ClassRepository) GetClass(ctx context.Context, acronym string, submissionID int, classID string) (*model.Class, error) {
	var c model.Class
	err := r.db.QueryRow(ctx, `
		SELECT uri, pref_label, synonyms, definition, obsolete FROM classes
		WHERE ontology = $1 AND submission_id = $2 AND uri = $3`, acronym, submissionID, classID,
	).Scan(&c.ID, &c.PrefLabel, &c.Synonyms, &c.Definition, &c.Obsolete)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sqlerr.NotFound("classes")
	}
	if err != nil {
		return nil, fmt.Errorf("getting class %s: %w", classID, err)
	}
	return &c, nil
}

// ReplaceProperties swaps the stored properties of a submission for properties.
func (r *ClassRepository) ReplaceProperties(ctx context.Context, acronym string, submissionID int, properties []model.Property) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM properties WHERE ontology = $1 AND submission_id = $2`, acronym, submissionID); err != nil {
			return fmt.Errorf("clearing properties of %s/%d: %w", acronym, submissionID, err)
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"properties"},
			[]string{"ontology", "submission_id", "uri", "label", "property_type", "definition"},
			pgx.CopyFromSlice(len(properties), func(i int) ([]any, error) {
				p := properties[i]
				return []any{acronym, submissionID, p.ID, p.Label, p.Type, nonNil(p.Definition)}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copying properties of %s/%d: %w", acronym, submissionID, err)
		}
		return nil
	})
}

func (r *ClassRepository) ListProperties(ctx context.Context, acronym string, submissionID int) ([]model.Property, error) {
	rows, err := r.db.Query(ctx, `
		SELECT uri, label, property_type, definition FROM properties
		WHERE ontology = $1 AND submission_id = $2
		ORDER BY uri`, acronym, submissionID)
	if err != nil {
		return nil, fmt.Errorf("listing properties of %s/%d: %w", acronym, submissionID, err)
	}
	defer rows.Close()

	properties := []model.Property{}
	for rows.Next() {
		var p model.Property
		if err := rows.Scan(&p.ID, &p.Label, &p.Type, &p.Definition); err != nil {
			return nil, fmt.Errorf("scanning property: %w", err)
		}
		properties = append(properties, p)
	}
	return properties, rows.Err()
}
