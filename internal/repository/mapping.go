package repository

import (
	"context"
	"fmt"

	"github.com/deppfellow/ontology-api/internal/model"
	"github.com/deppfellow/ontology-api/internal/sqlerr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MappingRepository struct {
	db *pgxpool.Pool
}

const mappingSelect = `
	SELECT m.id::text, m.uri,
	       p.id::text, p.uri, p.name, p.creator, p.relation, p.source, p.source_name, p.comment, p.date
	FROM mappings m
	JOIN mapping_processes p ON p.id = m.process_id`

// CreateMapping stores the process, the mapping and its term mappings in one transaction.
func (r *MappingRepository) CreateMapping(ctx context.Context, m *model.Mapping) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		p := &m.Process
		if _, err := tx.Exec(ctx, `
			INSERT INTO mapping_processes (id, uri, name, creator, relation, source, source_name, comment, date)
			VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.UUID, p.ID, p.Name, p.Creator, p.Relation, p.Source, p.SourceName, p.Comment, p.Date,
		); err != nil {
			return fmt.Errorf("creating mapping process: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO mappings (id, uri, process_id, created_at) VALUES ($1::uuid, $2, $3::uuid, $4)`,
			m.UUID, m.ID, p.UUID, p.Date,
		); err != nil {
			return fmt.Errorf("creating mapping: %w", err)
		}

		batch := &pgx.Batch{}
		for i, tm := range m.Terms {
			batch.Queue(`
				INSERT INTO term_mappings (mapping_id, position, ontology, terms) VALUES ($1::uuid, $2, $3, $4)`,
				m.UUID, i, tm.Ontology, tm.Terms)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("creating term mappings: %w", err)
		}

		return nil
	})
}

// loadMappings runs a mappingSelect query and attaches the term mappings,
// keeping the row order of the query.
func (r *MappingRepository) loadMappings(ctx context.Context, query string, args ...any) ([]model.Mapping, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying mappings: %w", err)
	}

	mappings := []model.Mapping{}
	for rows.Next() {
		var m model.Mapping
		p := &m.Process
		if err := rows.Scan(&m.UUID, &m.ID,
			&p.UUID, &p.ID, &p.Name, &p.Creator, &p.Relation, &p.Source, &p.SourceName, &p.Comment, &p.Date,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning mapping: %w", err)
		}
		m.Terms = []model.TermMapping{}
		mappings = append(mappings, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(mappings) == 0 {
		return mappings, nil
	}

	index := make(map[string]int, len(mappings))
	ids := make([]string, 0, len(mappings))
	for i, m := range mappings {
		index[m.UUID] = i
		ids = append(ids, m.UUID)
	}

	termRows, err := r.db.Query(ctx, `
		SELECT mapping_id::text, ontology, terms FROM term_mappings
		WHERE mapping_id = ANY($1::uuid[])
		ORDER BY mapping_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("querying term mappings: %w", err)
	}
	defer termRows.Close()

	for termRows.Next() {
		var (
			mappingID string
			tm        model.TermMapping
		)
		if err := termRows.Scan(&mappingID, &tm.Ontology, &tm.Terms); err != nil {
			return nil, fmt.Errorf("scanning term mapping: %w", err)
		}
		i := index[mappingID]
		mappings[i].Terms = append(mappings[i].Terms, tm)
	}

	return mappings, termRows.Err()
}

func (r *MappingRepository) GetMapping(ctx context.Context, id string) (*model.Mapping, error) {
	mappings, err := r.loadMappings(ctx, mappingSelect+` WHERE m.id = $1::uuid`, id)
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, sqlerr.NotFound("mappings")
	}
	return &mappings[0], nil
}

func (r *MappingRepository) DeleteMapping(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM mappings WHERE id = $1::uuid`, id)
		if err != nil {
			return fmt.Errorf("deleting mapping %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return sqlerr.NotFound("mappings")
		}
		return pruneMappings(ctx, tx)
	})
}

// ListByOntology returns one page of mappings with a side in the ontology, newest first.
func (r *MappingRepository) ListByOntology(ctx context.Context, acronym string, page, size int) ([]model.Mapping, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT count(DISTINCT mapping_id) FROM term_mappings WHERE ontology = $1`, acronym,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting mappings of %s: %w", acronym, err)
	}

	mappings, err := r.loadMappings(ctx, mappingSelect+`
		WHERE EXISTS (SELECT 1 FROM term_mappings tm WHERE tm.mapping_id = m.id AND tm.ontology = $1)
		ORDER BY m.created_at DESC, m.id
		LIMIT $2 OFFSET $3`, acronym, size, model.Offset(page, size))
	if err != nil {
		return nil, 0, err
	}
	return mappings, total, nil
}

// ListByClass returns every mapping that names classID on the ontology's side.
func (r *MappingRepository) ListByClass(ctx context.Context, acronym, classID string) ([]model.Mapping, error) {
	return r.loadMappings(ctx, mappingSelect+`
		WHERE EXISTS (
			SELECT 1 FROM term_mappings tm
			WHERE tm.mapping_id = m.id AND tm.ontology = $1 AND tm.terms @> ARRAY[$2::text]
		)
		ORDER BY m.created_at DESC, m.id`, acronym, classID)
}

func (r *MappingRepository) Recent(ctx context.Context, limit int) ([]model.Mapping, error) {
	return r.loadMappings(ctx, mappingSelect+` ORDER BY m.created_at DESC, m.id LIMIT $1`, limit)
}

func scanCounts(rows pgx.Rows, counts map[string]int) (map[string]int, error) {
	defer rows.Close()
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

// CountByOntology counts mappings per ontology, including ontologies with none.
func (r *MappingRepository) CountByOntology(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT o.acronym, count(DISTINCT tm.mapping_id)
		FROM ontologies o
		LEFT JOIN term_mappings tm ON tm.ontology = o.acronym
		GROUP BY o.acronym`)
	if err != nil {
		return nil, fmt.Errorf("counting mappings per ontology: %w", err)
	}
	return scanCounts(rows, map[string]int{})
}

// CountBetween counts the mappings acronym shares with every other ontology.
func (r *MappingRepository) CountBetween(ctx context.Context, acronym string) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT other.ontology, count(DISTINCT other.mapping_id)
		FROM term_mappings mine
		JOIN term_mappings other ON other.mapping_id = mine.mapping_id AND other.ontology <> mine.ontology
		WHERE mine.ontology = $1
		GROUP BY other.ontology`, acronym)
	if err != nil {
		return nil, fmt.Errorf("counting mappings between %s and others: %w", acronym, err)
	}
	return scanCounts(rows, map[string]int{})
}

// PopularClasses counts mappings per class of the ontology, most mapped first.
func (r *MappingRepository) PopularClasses(ctx context.Context, acronym string, limit int) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT term, count(DISTINCT tm.mapping_id) AS n
		FROM term_mappings tm, unnest(tm.terms) AS term
		WHERE tm.ontology = $1
		GROUP BY term
		ORDER BY n DESC, term
		LIMIT $2`, acronym, limit)
	if err != nil {
		return nil, fmt.Errorf("counting popular classes of %s: %w", acronym, err)
	}
	return scanCounts(rows, map[string]int{})
}

// TopCreators counts mappings of the ontology per creator, most active first.
func (r *MappingRepository) TopCreators(ctx context.Context, acronym string, limit int) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.creator, count(DISTINCT m.id) AS n
		FROM mappings m
		JOIN mapping_processes p ON p.id = m.process_id
		JOIN term_mappings tm ON tm.mapping_id = m.id
		WHERE tm.ontology = $1
		GROUP BY p.creator
		ORDER BY n DESC, p.creator
		LIMIT $2`, acronym, limit)
	if err != nil {
		return nil, fmt.Errorf("counting mapping creators of %s: %w", acronym, err)
	}
	return scanCounts(rows, map[string]int{})
}
