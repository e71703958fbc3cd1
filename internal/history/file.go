package history

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// FileStore keeps the history as a text file with one
// "<checksum> <path> <kind>" line per entry.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// NewFileStore returns a store backed by the file at path. The file is
// created on the first Record.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Record implements Store.
func (s *FileStore) Record(_ context.Context, e Entry) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, e.Kind)
	}
	if e.Checksum == "" || strings.ContainsAny(e.Path, " \n") {
		return fmt.Errorf("history: cannot record checksum %q with path %q", e.Checksum, e.Path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%s %s %s\n", e.Checksum, e.Path, e.Kind); err != nil {
		_ = f.Close()
		return fmt.Errorf("history: %w", err)
	}
	return f.Close()
}

// Lookup implements Store.
func (s *FileStore) Lookup(ctx context.Context, checksum string) (Entry, bool, error) {
	entries, err := s.List(ctx, 0)
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if e.Checksum == checksum {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// List implements Store. RecordedAt is the modification time of each
// backup, or zero when the backup is gone. Malformed lines are skipped.
func (s *FileStore) List(_ context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 3 || !Kind(fields[2]).Valid() {
			continue
		}
		e := Entry{Checksum: fields[0], Path: fields[1], Kind: Kind(fields[2])}
		if fi, err := os.Stat(e.Path); err == nil {
			e.RecordedAt = fi.ModTime().UTC().Truncate(time.Second)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
