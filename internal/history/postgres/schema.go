// Package postgres provides a PostgreSQL-backed [history.Store].
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//	_ = store.Save(ctx, rec)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessionHistory = `
CREATE TABLE IF NOT EXISTS session_history (
    id          TEXT        PRIMARY KEY,
    session_id  TEXT        NOT NULL DEFAULT '',
    user_id     TEXT        NOT NULL,
    mode        TEXT        NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    ended_at    TIMESTAMPTZ NOT NULL,
    transcript  JSONB       NOT NULL DEFAULT '[]'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_session_history_user
    ON session_history (user_id, started_at DESC);
`

// Migrate creates the tables used by [Store]. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlSessionHistory); err != nil {
		return fmt.Errorf("history migrate: %w", err)
	}
	return nil
}
