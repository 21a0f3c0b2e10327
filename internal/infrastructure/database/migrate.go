package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations run in order; each statement is idempotent so db-init can
// be re-run against an existing database.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS decks (
		id UUID PRIMARY KEY,
		owner_id UUID NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_decks_owner ON decks (owner_id)`,

	`CREATE TABLE IF NOT EXISTS cards (
		id UUID PRIMARY KEY,
		deck_id UUID NOT NULL REFERENCES decks(id) ON DELETE CASCADE,
		type TEXT NOT NULL DEFAULT 'basic',
		front TEXT NOT NULL,
		back TEXT NOT NULL,
		tags TEXT[] NOT NULL DEFAULT '{}',
		source_excerpt TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_cards_deck_front ON cards (deck_id, lower(front))`,

	`CREATE TABLE IF NOT EXISTS scheduler_states (
		card_id UUID PRIMARY KEY REFERENCES cards(id) ON DELETE CASCADE,
		ease DOUBLE PRECISION NOT NULL DEFAULT 2.5 CHECK (ease >= 1.3),
		interval_days INTEGER NOT NULL DEFAULT 0,
		repetitions INTEGER NOT NULL DEFAULT 0,
		next_due_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_reviewed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scheduler_states_due ON scheduler_states (next_due_at)`,

	`CREATE TABLE IF NOT EXISTS reviews (
		id UUID PRIMARY KEY,
		card_id UUID NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
		user_id UUID NOT NULL,
		response TEXT NOT NULL,
		ease DOUBLE PRECISION NOT NULL,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_user_created ON reviews (user_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS study_sessions (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		deck_id UUID REFERENCES decks(id) ON DELETE SET NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		cards_reviewed INTEGER NOT NULL DEFAULT 0,
		correct_count INTEGER NOT NULL DEFAULT 0,
		stats JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user ON study_sessions (user_id, started_at)`,

	`CREATE TABLE IF NOT EXISTS import_jobs (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		deck_id UUID NOT NULL REFERENCES decks(id) ON DELETE CASCADE,
		source_type TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT NOT NULL DEFAULT '',
		result_summary TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_import_jobs_pending ON import_jobs (created_at) WHERE status = 'pending'`,
}

// Migrate applies the schema to the target database.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}
