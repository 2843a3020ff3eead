// Package history persists a summary of every finished practice or test
// session: who, which mode, how long, and the transcript.
//
// [MemStore] keeps records in process. The postgres subpackage stores them
// in PostgreSQL.
package history

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/parley/internal/session"
)

// ErrInvalidRecord is returned by Save for a record missing required fields.
var ErrInvalidRecord = errors.New("history: invalid record")

// Record is one finished session.
type Record struct {
	// ID uniquely identifies the record.
	ID string `json:"id"`

	// SessionID is the identifier the service assigned to the session.
	SessionID string `json:"session_id"`

	// UserID identifies the learner.
	UserID string `json:"user_id"`

	// Mode is "practice" or "test".
	Mode session.Mode `json:"mode"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	// Transcript is the conversation as captured locally.
	Transcript []session.Line `json:"transcript"`
}

// Duration returns how long the session ran.
func (r Record) Duration() time.Duration {
	if r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Validate reports whether r can be stored.
func (r Record) Validate() error {
	var errs []error
	if r.ID == "" {
		errs = append(errs, errors.New("missing id"))
	}
	if r.UserID == "" {
		errs = append(errs, errors.New("missing user id"))
	}
	if r.StartedAt.IsZero() {
		errs = append(errs, errors.New("missing start time"))
	}
	if err := errors.Join(errs...); err != nil {
		return errors.Join(ErrInvalidRecord, err)
	}
	return nil
}

// Store persists session records.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Save inserts or replaces r.
	Save(ctx context.Context, r Record) error

	// List returns up to limit records for userID, newest first. A
	// non-positive limit returns all records.
	List(ctx context.Context, userID string, limit int) ([]Record, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close()
}

// MemStore is an in-memory [Store].
type MemStore struct {
	mu      sync.Mutex
	records map[string]Record
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]Record)}
}

// Save implements [Store].
func (m *MemStore) Save(_ context.Context, r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	r.Transcript = slices.Clone(r.Transcript)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = r
	return nil
}

// List implements [Store].
func (m *MemStore) List(_ context.Context, userID string, limit int) ([]Record, error) {
	m.mu.Lock()
	var out []Record
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	m.mu.Unlock()

	slices.SortFunc(out, func(a, b Record) int { return b.StartedAt.Compare(a.StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}

// Ping implements [Store]. It always succeeds.
func (m *MemStore) Ping(context.Context) error { return nil }

// Close implements [Store].
func (m *MemStore) Close() {}
