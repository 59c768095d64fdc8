package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/associates-api/internal/associates"
)

const documentsSchema = `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT        NOT NULL,
		id         TEXT        NOT NULL,
		body       JSONB       NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection, id)
	)
`

// PostgresStore is a PostgreSQL implementation of associates.Repository.
// The document is a JSONB row; every field patch is a single conditional
// UPDATE so the presence check and the write happen atomically.
type PostgresStore struct {
	pool *pgxpool.Pool
	doc  associates.DocumentKey
}

// NewPostgresStore creates a new PostgreSQL-backed document store.
func NewPostgresStore(pool *pgxpool.Pool, doc associates.DocumentKey) *PostgresStore {
	return &PostgresStore{pool: pool, doc: doc}
}

// Migrate creates the documents table if it does not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, documentsSchema)

	return err
}

func (p *PostgresStore) Fetch(ctx context.Context) (*associates.Snapshot, error) {
	query := `
		SELECT body
		FROM documents
		WHERE collection = $1 AND id = $2
	`

	var body []byte

	err := p.pool.QueryRow(ctx, query, p.doc.Collection, p.doc.ID).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &associates.Snapshot{}, nil
		}

		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode document body: %w", err)
	}

	doc, err := associates.DecodeDocument(fields)
	if err != nil {
		return nil, err
	}

	return &associates.Snapshot{Exists: true, Document: doc}, nil
}

func (p *PostgresStore) InitializeEmpty(ctx context.Context) error {
	query := `
		INSERT INTO documents (collection, id, body)
		VALUES ($1, $2, '{}'::jsonb)
		ON CONFLICT (collection, id) DO NOTHING
	`

	_, err := p.pool.Exec(ctx, query, p.doc.Collection, p.doc.ID)

	return err
}

func (p *PostgresStore) ApplyFieldPatch(ctx context.Context, name string, patch associates.FieldPatch) error {
	switch patch.Op {
	case associates.PatchInsert:
		return p.insert(ctx, name, patch)
	case associates.PatchMerge:
		return p.merge(ctx, name, patch)
	case associates.PatchRemove:
		return p.remove(ctx, name)
	default:
		return fmt.Errorf("store: unsupported patch op %s", patch.Op)
	}
}

func (p *PostgresStore) insert(ctx context.Context, name string, patch associates.FieldPatch) error {
	encoded, err := patch.Apply(nil, false)
	if err != nil {
		return err
	}

	query := `
		UPDATE documents
		SET body = body || jsonb_build_object($3::text, $4::jsonb),
		    updated_at = now()
		WHERE collection = $1 AND id = $2 AND NOT (body ? $3::text)
	`

	tag, err := p.pool.Exec(ctx, query, p.doc.Collection, p.doc.ID, name, string(encoded))
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return p.unmetCondition(ctx, associates.ErrFieldExists)
	}

	return nil
}

// merge overwrites the provided sub-fields. A legacy bare value is wrapped
// into the current shape and a missing like count is set to zero.
func (p *PostgresStore) merge(ctx context.Context, name string, patch associates.FieldPatch) error {
	sets, err := json.Marshal(patch.Sets())
	if err != nil {
		return err
	}

	query := `
		UPDATE documents
		SET body = jsonb_set(
		        body,
		        ARRAY[$3::text],
		        '{"likeCount": 0}'::jsonb
		            || CASE
		                   WHEN jsonb_typeof(body -> $3::text) = 'object' THEN body -> $3::text
		                   ELSE jsonb_build_object('value', body -> $3::text)
		               END
		            || $4::jsonb
		    ),
		    updated_at = now()
		WHERE collection = $1 AND id = $2 AND body ? $3::text
	`

	tag, err := p.pool.Exec(ctx, query, p.doc.Collection, p.doc.ID, name, string(sets))
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return p.unmetCondition(ctx, associates.ErrFieldMissing)
	}

	return nil
}

func (p *PostgresStore) remove(ctx context.Context, name string) error {
	query := `
		UPDATE documents
		SET body = body - $3::text,
		    updated_at = now()
		WHERE collection = $1 AND id = $2 AND body ? $3::text
	`

	tag, err := p.pool.Exec(ctx, query, p.doc.Collection, p.doc.ID, name)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return p.unmetCondition(ctx, associates.ErrFieldMissing)
	}

	return nil
}

// unmetCondition explains why a conditional UPDATE touched no rows: either the
// document is missing or the field check failed with fieldErr.
func (p *PostgresStore) unmetCondition(ctx context.Context, fieldErr error) error {
	query := `
		SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)
	`

	var exists bool

	if err := p.pool.QueryRow(ctx, query, p.doc.Collection, p.doc.ID).Scan(&exists); err != nil {
		return err
	}

	if !exists {
		return associates.ErrDocumentMissing
	}

	return fieldErr
}

// Ping checks PostgreSQL connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Compile-time check.
var _ associates.Repository = (*PostgresStore)(nil)
