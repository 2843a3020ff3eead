package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/parley/internal/history"
	"github.com/MrWong99/parley/internal/session"
)

var _ history.Store = (*Store)(nil)

// Store persists [history.Record] values in PostgreSQL. It is safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn, verifies the connection and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Save implements [history.Store].
func (s *Store) Save(ctx context.Context, r history.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	lines := r.Transcript
	if lines == nil {
		lines = []session.Line{}
	}
	transcript, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("history store: encode transcript: %w", err)
	}

	const q = `
		INSERT INTO session_history (id, session_id, user_id, mode, started_at, ended_at, transcript)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
		    session_id = EXCLUDED.session_id,
		    mode       = EXCLUDED.mode,
		    started_at = EXCLUDED.started_at,
		    ended_at   = EXCLUDED.ended_at,
		    transcript = EXCLUDED.transcript`

	_, err = s.pool.Exec(ctx, q,
		r.ID, r.SessionID, r.UserID, string(r.Mode),
		r.StartedAt.UTC(), r.EndedAt.UTC(), transcript,
	)
	if err != nil {
		return fmt.Errorf("history store: save %s: %w", r.ID, err)
	}
	return nil
}

// List implements [history.Store].
func (s *Store) List(ctx context.Context, userID string, limit int) ([]history.Record, error) {
	q := `
		SELECT id, session_id, user_id, mode, started_at, ended_at, transcript
		FROM   session_history
		WHERE  user_id = $1
		ORDER  BY started_at DESC`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history store: list: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.Record, error) {
		var (
			r          history.Record
			mode       string
			started    time.Time
			ended      time.Time
			transcript []byte
		)
		if err := row.Scan(&r.ID, &r.SessionID, &r.UserID, &mode, &started, &ended, &transcript); err != nil {
			return history.Record{}, err
		}
		r.Mode = session.Mode(mode)
		r.StartedAt = started.UTC()
		r.EndedAt = ended.UTC()
		if err := json.Unmarshal(transcript, &r.Transcript); err != nil {
			return history.Record{}, fmt.Errorf("decode transcript: %w", err)
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("history store: list: %w", err)
	}
	if records == nil {
		records = []history.Record{}
	}
	return records, nil
}

// Ping implements [history.Store].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("history store: ping: %w", err)
	}
	return nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}
