package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/pluginhost/internal/history"
)

const timeLayout = "2006-01-02T15:04:05Z"

// Store implements history.Store on the config_history table.
type Store struct {
	db   *sql.DB
	keep int
}

// Compile-time interface check.
var _ history.Store = (*Store)(nil)

// Record implements history.Store.
func (s *Store) Record(ctx context.Context, e history.Entry) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", history.ErrInvalidKind, e.Kind)
	}
	at := e.RecordedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config_history (checksum, path, kind, recorded_at) VALUES (?, ?, ?, ?)`,
		e.Checksum, e.Path, string(e.Kind), at.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("sqlite: record history: %w", err)
	}
	return s.prune(ctx)
}

// prune drops all but the newest keep rows.
func (s *Store) prune(ctx context.Context) error {
	if s.keep <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM config_history
		WHERE seq <= (SELECT seq FROM config_history ORDER BY seq DESC LIMIT 1 OFFSET ?)`,
		s.keep,
	)
	if err != nil {
		return fmt.Errorf("sqlite: prune history: %w", err)
	}
	return nil
}

// Lookup implements history.Store.
func (s *Store) Lookup(ctx context.Context, checksum string) (history.Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT checksum, path, kind, recorded_at
		FROM config_history
		WHERE checksum = ?
		ORDER BY seq DESC
		LIMIT 1`,
		checksum,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return history.Entry{}, false, nil
	}
	if err != nil {
		return history.Entry{}, false, err
	}
	return e, true, nil
}

// List implements history.Store.
func (s *Store) List(ctx context.Context, limit int) ([]history.Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT checksum, path, kind, recorded_at
		FROM config_history
		ORDER BY seq DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []history.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list history rows: %w", err)
	}
	return out, nil
}

// Len returns the number of recorded entries.
func (s *Store) Len(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM config_history").Scan(&n); err != nil {
		return 0
	}
	return n
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (history.Entry, error) {
	var (
		e    history.Entry
		kind string
		at   string
	)
	if err := sc.Scan(&e.Checksum, &e.Path, &kind, &at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("sqlite: scan history: %w", err)
	}
	e.Kind = history.Kind(kind)
	if t, err := time.Parse(timeLayout, at); err == nil {
		e.RecordedAt = t
	}
	return e, nil
}
