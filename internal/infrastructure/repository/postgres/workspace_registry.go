package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
	"github.com/kirillkom/knowledge-gateway/internal/core/ports"
)

// Compile-time check: WorkspaceRegistry implements ports.WorkspaceRegistry.
var _ ports.WorkspaceRegistry = (*WorkspaceRegistry)(nil)

// WorkspaceRegistry stores the searchable workspace catalog. Tech tags
// accumulate across upserts so a workspace keeps the affinities observed by
// every ingested page.
type WorkspaceRegistry struct {
	db *sql.DB
}

func NewWorkspaceRegistry(db *sql.DB) *WorkspaceRegistry {
	return &WorkspaceRegistry{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *WorkspaceRegistry) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026031102)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS workspaces (
	slug TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	tech_tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_workspaces_active ON workspaces(active);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *WorkspaceRegistry) ListWorkspaces(ctx context.Context) ([]domain.WorkspaceDescriptor, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT slug, name, tech_tags
FROM workspaces
WHERE active = TRUE
ORDER BY slug
`)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	var out []domain.WorkspaceDescriptor
	for rows.Next() {
		var ws domain.WorkspaceDescriptor
		var tagsRaw []byte
		if err := rows.Scan(&ws.Slug, &ws.Name, &tagsRaw); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		if err := json.Unmarshal(tagsRaw, &ws.TechTags); err != nil {
			return nil, fmt.Errorf("unmarshal tech tags for %s: %w", ws.Slug, err)
		}
		out = append(out, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspaces: %w", err)
	}
	return out, nil
}

func (r *WorkspaceRegistry) UpsertWorkspace(ctx context.Context, ws domain.WorkspaceDescriptor) error {
	tags := ws.TechTags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tech tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO workspaces (slug, name, tech_tags, active, created_at, updated_at)
VALUES ($1, $2, $3, TRUE, $4, $4)
ON CONFLICT (slug) DO UPDATE
SET name = COALESCE(NULLIF(EXCLUDED.name, ''), workspaces.name),
    tech_tags = (
	SELECT COALESCE(jsonb_agg(DISTINCT tag), '[]'::jsonb)
	FROM jsonb_array_elements_text(workspaces.tech_tags || EXCLUDED.tech_tags) AS t(tag)
    ),
    updated_at = EXCLUDED.updated_at
`, ws.Slug, ws.Name, tagsJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert workspace: %w", err)
	}
	return nil
}
