package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/associates-api/internal/audit"
)

const changesSchema = `
CREATE TABLE IF NOT EXISTS associate_changes (
	id          TEXT PRIMARY KEY,
	operation   TEXT NOT NULL,
	name        TEXT NOT NULL,
	value       TEXT,
	like_count  BIGINT NOT NULL DEFAULT 0,
	client_ip   TEXT,
	user_agent  TEXT,
	request_id  TEXT,
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_associate_changes_name ON associate_changes (name, occurred_at);
`

// Postgres persists change events to the associate_changes table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a new PostgreSQL audit store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the associate_changes table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, changesSchema); err != nil {
		return fmt.Errorf("create associate_changes: %w", err)
	}

	return nil
}

// SaveChange stores event. Redelivered events are ignored.
func (p *Postgres) SaveChange(ctx context.Context, event *audit.ChangeEvent) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO associate_changes
			(id, operation, name, value, like_count, client_ip, user_agent, request_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		event.ID,
		string(event.Operation),
		event.Name,
		event.Value,
		event.LikeCount,
		event.ClientIP,
		event.UserAgent,
		event.RequestID,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert change %s: %w", event.ID, err)
	}

	return nil
}

// Count returns the number of stored events for name.
func (p *Postgres) Count(ctx context.Context, name string) (int, error) {
	var n int

	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM associate_changes WHERE name = $1`, name).Scan(&n)

	return n, err
}

var _ audit.Store = (*Postgres)(nil)
