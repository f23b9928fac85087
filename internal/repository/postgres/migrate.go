package postgres

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
	`CREATE TABLE IF NOT EXISTS items (
		id            text PRIMARY KEY,
		title         text NOT NULL,
		body          text NOT NULL DEFAULT '',
		tags          text[] NOT NULL DEFAULT '{}',
		owner_id      text NOT NULL,
		workspace_id  text NOT NULL DEFAULT '',
		is_public     boolean NOT NULL DEFAULT false,
		usage_count   integer NOT NULL DEFAULT 0 CHECK (usage_count >= 0),
		created_at    timestamptz NOT NULL,
		search_vector tsvector GENERATED ALWAYS AS (
			setweight(to_tsvector('` + textSearchConfig + `', coalesce(title, '')), 'A') ||
			setweight(to_tsvector('` + textSearchConfig + `', coalesce(body, '')), 'B')
		) STORED
	)`,
	`CREATE INDEX IF NOT EXISTS items_search_vector_idx ON items USING gin (search_vector)`,
	`CREATE INDEX IF NOT EXISTS items_title_trgm_idx ON items USING gin (title gin_trgm_ops)`,
	`CREATE INDEX IF NOT EXISTS items_tags_idx ON items USING gin (tags)`,
	`CREATE INDEX IF NOT EXISTS items_owner_idx ON items (owner_id)`,
	`CREATE INDEX IF NOT EXISTS items_workspace_idx ON items (workspace_id) WHERE workspace_id <> ''`,
	`CREATE INDEX IF NOT EXISTS items_public_idx ON items (created_at DESC) WHERE is_public`,
	`CREATE TABLE IF NOT EXISTS item_embeddings (
		item_id   text NOT NULL REFERENCES items (id) ON DELETE CASCADE,
		model     text NOT NULL,
		embedding vector NOT NULL,
		PRIMARY KEY (item_id, model)
	)`,
	`CREATE TABLE IF NOT EXISTS search_history (
		id           uuid PRIMARY KEY,
		user_id      text NOT NULL,
		query        text NOT NULL,
		mode         text NOT NULL,
		result_count integer NOT NULL,
		filters      jsonb,
		created_at   timestamptz NOT NULL
	)`,
	`ALTER TABLE search_history ADD COLUMN IF NOT EXISTS filters jsonb`,
	`CREATE INDEX IF NOT EXISTS search_history_user_idx ON search_history (user_id, created_at DESC)`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db dbtx) error {
	for i, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
