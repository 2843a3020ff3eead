package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// maxLineSize bounds one encoded record when reading the file back.
const maxLineSize = 4 << 20

// FileStore persists records as append-only JSON lines in a local file,
// suitable for a single learner without a database. Saving a record again
// appends a new line; the last line for an ID wins.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore that writes to path. The file is created
// on the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save implements [Store].
func (fs *FileStore) Save(_ context.Context, r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}
	data = append(data, '\n')

	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("history: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("history: write: %w", err)
	}
	return nil
}

// List implements [Store]. Malformed lines are skipped.
func (fs *FileStore) List(_ context.Context, userID string, limit int) ([]Record, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.Open(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: open file: %w", err)
	}
	defer f.Close()

	latest := make(map[string]Record)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	for sc.Scan() {
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.UserID == userID {
			latest[r.ID] = r
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("history: read file: %w", err)
	}

	out := make([]Record, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Record) int { return b.StartedAt.Compare(a.StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping implements [Store]. It checks that the file's directory exists.
func (fs *FileStore) Ping(context.Context) error {
	info, err := os.Stat(filepath.Dir(fs.path))
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("history: %s is not a directory", filepath.Dir(fs.path))
	}
	return nil
}

// Close implements [Store].
func (fs *FileStore) Close() {}
