package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PGRepo reads the dataset document from one row of record_datasets. The
// column is json rather than jsonb so the stored text comes back as written.
type PGRepo struct {
	db   querier
	name string
}

// NewPGRepo returns a repository for the dataset stored under name. db is
// usually a *pgxpool.Pool.
func NewPGRepo(db querier, name string) *PGRepo {
	return &PGRepo{db: db, name: name}
}

const datasetTableDDL = `
CREATE TABLE IF NOT EXISTS record_datasets (
	name       TEXT PRIMARY KEY,
	document   JSON NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func (r *PGRepo) Source() string { return "postgres" }

func (r *PGRepo) Load(ctx context.Context) (*Dataset, error) {
	var doc []byte
	err := r.db.QueryRow(ctx,
		`SELECT document::text FROM record_datasets WHERE name = $1`, r.name,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("dataset %q not present in record_datasets", r.name)
	}
	if err != nil {
		return nil, fmt.Errorf("select dataset: %w", err)
	}

	ds, err := ParseDataset(doc)
	if err != nil {
		return nil, fmt.Errorf("parse dataset %q: %w", r.name, err)
	}
	return ds, nil
}

// Store creates the table if needed and upserts the document.
func (r *PGRepo) Store(ctx context.Context, document []byte) error {
	if _, err := r.db.Exec(ctx, datasetTableDDL); err != nil {
		return fmt.Errorf("create record_datasets: %w", err)
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO record_datasets (name, document, updated_at)
		VALUES ($1, $2::json, now())
		ON CONFLICT (name) DO UPDATE SET document = EXCLUDED.document, updated_at = now()`,
		r.name, string(document))
	if err != nil {
		return fmt.Errorf("upsert dataset: %w", err)
	}
	return nil
}

func (r *PGRepo) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}
