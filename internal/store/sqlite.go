package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/serroba/associates-api/internal/associates"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLiteStore is a SQLite implementation of associates.Repository for
// single-node deployments. The document is stored as JSON text; each patch
// is a read-modify-write inside one transaction on a single connection.
type SQLiteStore struct {
	db  *sql.DB
	doc associates.DocumentKey
}

// NewSQLiteStore opens (or creates) a SQLite database at dsn and initialises
// the schema. Use ":memory:" for an in-memory database.
func NewSQLiteStore(dsn string, doc associates.DocumentKey) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection serialises all transactions, and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			body       TEXT NOT NULL DEFAULT '{}',
			PRIMARY KEY (collection, id)
		)
	`); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create documents table: %w", err)
	}

	return &SQLiteStore{db: db, doc: doc}, nil
}

func (s *SQLiteStore) Fetch(ctx context.Context) (*associates.Snapshot, error) {
	fields, exists, err := s.load(ctx, s.db)
	if err != nil {
		return nil, err
	}

	if !exists {
		return &associates.Snapshot{}, nil
	}

	doc, err := associates.DecodeDocument(fields)
	if err != nil {
		return nil, err
	}

	return &associates.Snapshot{Exists: true, Document: doc}, nil
}

func (s *SQLiteStore) InitializeEmpty(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO documents (collection, id, body) VALUES (?, ?, '{}')`,
		s.doc.Collection, s.doc.ID,
	)

	return err
}

func (s *SQLiteStore) ApplyFieldPatch(ctx context.Context, name string, patch associates.FieldPatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	fields, exists, err := s.load(ctx, tx)
	if err != nil {
		return err
	}

	if !exists {
		return associates.ErrDocumentMissing
	}

	current, present := fields[name]

	next, err := patch.Apply(current, present)
	if err != nil {
		return err
	}

	if next == nil {
		delete(fields, name)
	} else {
		fields[name] = next
	}

	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET body = ? WHERE collection = ? AND id = ?`,
		string(body), s.doc.Collection, s.doc.ID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) load(ctx context.Context, q queryer) (map[string]json.RawMessage, bool, error) {
	var body string

	err := q.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`,
		s.doc.Collection, s.doc.ID,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, false, fmt.Errorf("decode document body: %w", err)
	}

	return fields, true, nil
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Shutdown closes the database.
func (s *SQLiteStore) Shutdown() error {
	return s.db.Close()
}

// Compile-time check.
var _ associates.Repository = (*SQLiteStore)(nil)
