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

type OntologyRepository struct {
	db *pgxpool.Pool
}

const ontologyColumns = `acronym, uri, name, administered_by, summary_only, flat,
	viewing_restriction, created_at, updated_at`

func scanOntology(row pgx.Row) (*model.Ontology, error) {
	var (
		o           model.Ontology
		restriction *string
	)

	err := row.Scan(
		&o.Acronym,
		&o.ID,
		&o.Name,
		&o.AdministeredBy,
		&o.SummaryOnly,
		&o.Flat,
		&restriction,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.ViewingRestriction = derefString(restriction)
	if o.AdministeredBy == nil {
		o.AdministeredBy = []string{}
	}
	return &o, nil
}

func (r *OntologyRepository) ListOntologies(ctx context.Context) ([]model.Ontology, error) {
	rows, err := r.db.Query(ctx, `SELECT `+ontologyColumns+` FROM ontologies ORDER BY acronym`)
	if err != nil {
		return nil, fmt.Errorf("listing ontologies: %w", err)
	}
	defer rows.Close()

	ontologies := []model.Ontology{}
	for rows.Next() {
		o, err := scanOntology(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ontology: %w", err)
		}
		ontologies = append(ontologies, *o)
	}

	return ontologies, rows.Err()
}

func (r *OntologyRepository) GetOntology(ctx context.Context, acronym string) (*model.Ontology, error) {
	o, err := scanOntology(r.db.QueryRow(ctx,
		`SELECT `+ontologyColumns+` FROM ontologies WHERE acronym = $1`, acronym))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sqlerr.NotFound("ontologies")
	}
	if err != nil {
		return nil, fmt.Errorf("getting ontology %s: %w", acronym, err)
	}
	return o, nil
}

func (r *OntologyRepository) CreateOntology(ctx context.Context, o *model.Ontology) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO ontologies (acronym, uri, name, administered_by, summary_only, flat, viewing_restriction)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		o.Acronym, o.ID, o.Name, o.AdministeredBy, o.SummaryOnly, o.Flat, nullableString(o.ViewingRestriction),
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating ontology %s: %w", o.Acronym, err)
	}
	return nil
}

func (r *OntologyRepository) UpdateOntology(ctx context.Context, o *model.Ontology) error {
	err := r.db.QueryRow(ctx, `
		UPDATE ontologies
		SET name = $2, administered_by = $3, summary_only = $4, flat = $5,
		    viewing_restriction = $6, updated_at = now()
		WHERE acronym = $1
		RETURNING updated_at`,
		o.Acronym, o.Name, o.AdministeredBy, o.SummaryOnly, o.Flat, nullableString(o.ViewingRestriction),
	).Scan(&o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return sqlerr.NotFound("ontologies")
	}
	if err != nil {
		return fmt.Errorf("updating ontology %s: %w", o.Acronym, err)
	}
	return nil
}

// DeleteOntology removes the ontology with its submissions, classes and
// term mappings. Mappings left with fewer than two sides go too, along with
// processes no mapping points at any more.
func (r *OntologyRepository) DeleteOntology(ctx context.Context, acronym string) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM ontologies WHERE acronym = $1`, acronym)
		if err != nil {
			return fmt.Errorf("deleting ontology %s: %w", acronym, err)
		}
		if tag.RowsAffected() == 0 {
			return sqlerr.NotFound("ontologies")
		}

		return pruneMappings(ctx, tx)
	})
}

func pruneMappings(ctx context.Context, q querier) error {
	if _, err := q.Exec(ctx, `
		DELETE FROM mappings m
		WHERE (SELECT count(*) FROM term_mappings tm WHERE tm.mapping_id = m.id) < 2`); err != nil {
		return fmt.Errorf("pruning one-sided mappings: %w", err)
	}

	if _, err := q.Exec(ctx, `
		DELETE FROM mapping_processes p
		WHERE NOT EXISTS (SELECT 1 FROM mappings m WHERE m.process_id = p.id)`); err != nil {
		return fmt.Errorf("pruning orphan mapping processes: %w", err)
	}

	return nil
}
