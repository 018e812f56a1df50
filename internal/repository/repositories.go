// Package repository implements persistence on PostgreSQL through pgx.
//
// Each repository returns sqlerr.NotFound(table) when a row is missing, so
// callers can test with sqlerr.IsNotFound and the global error handler can
// name the missing entity.
package repository

import (
	"context"

	"github.com/deppfellow/ontology-api/internal/server"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories groups every repository behind one value for wiring.
type Repositories struct {
	Ontology   *OntologyRepository
	Submission *SubmissionRepository
	Class      *ClassRepository
	Mapping    *MappingRepository
	User       *UserRepository
}

// NewRepositories builds the repositories on the server's pool.
func NewRepositories(s *server.Server) *Repositories {
	return NewRepositoriesWithPool(s.DB.Pool)
}

// NewRepositoriesWithPool builds the repositories on an existing pool.
func NewRepositoriesWithPool(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Ontology:   &OntologyRepository{db: pool},
		Submission: &SubmissionRepository{db: pool},
		Class:      &ClassRepository{db: pool},
		Mapping:    &MappingRepository{db: pool},
		User:       &UserRepository{db: pool},
	}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
