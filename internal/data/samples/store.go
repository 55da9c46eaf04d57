// Package samples keeps a small SQLite catalog of example Python sources.
package samples

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"pyrefactor/internal/core/errors"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
	// MemoryPath opens a private in-memory catalog.
	MemoryPath = ":memory:"
)

var validName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Sample is one catalog entry. Options name the passes it demonstrates.
type Sample struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Source      string    `json:"source,omitempty"`
	Options     []string  `json:"options"`
	Builtin     bool      `json:"builtin"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Open opens or creates the catalog at path and applies migrations.
func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, errors.New(errors.CodeValidationError, "samples path must not be empty")
	}

	var dsn string
	if cleanPath == MemoryPath {
		dsn = "file::memory:?_pragma=foreign_keys(ON)"
	} else {
		if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
			return nil, errors.Newf(errors.CodeValidationError, "samples path %q is a directory, expected file", cleanPath)
		}
		dir := filepath.Dir(cleanPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create samples directory %q: %w", dir, err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite samples %q: %w", cleanPath, err)
	}
	// One connection keeps an in-memory catalog alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite samples %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}
	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Seed inserts the built-in samples that are not already present. User
// edits to a built-in name are kept.
func (s *Store) Seed(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, sample := range Builtins() {
		err := s.withRetry("seed sample", func() error {
			res, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO samples (name, description, source, options, builtin, updated_at_utc)
VALUES (?, ?, ?, ?, 1, ?)`,
				sample.Name, sample.Description, sample.Source, joinOptions(sample.Options), now())
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			inserted += int(n)
			return nil
		})
		if err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

// Put creates or replaces a sample.
func (s *Store) Put(ctx context.Context, sample Sample) error {
	if !validName.MatchString(sample.Name) {
		return errors.Newf(errors.CodeValidationError, "invalid sample name %q", sample.Name)
	}
	if strings.TrimSpace(sample.Source) == "" {
		return errors.Newf(errors.CodeValidationError, "sample %q has no source", sample.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("put sample", func() error {
		_, err := s.db.ExecContext(ctx, `
INSERT INTO samples (name, description, source, options, builtin, updated_at_utc)
VALUES (?, ?, ?, ?, 0, ?)
ON CONFLICT(name) DO UPDATE SET
  description=excluded.description,
  source=excluded.source,
  options=excluded.options,
  builtin=0,
  updated_at_utc=excluded.updated_at_utc`,
			sample.Name, sample.Description, sample.Source, joinOptions(sample.Options), now())
		return err
	})
}

// Get returns the named sample or a NOT_FOUND error.
func (s *Store) Get(ctx context.Context, name string) (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		sample  Sample
		options string
		updated string
	)
	err := s.withRetry("get sample", func() error {
		return s.db.QueryRowContext(ctx, `
SELECT name, description, source, options, builtin, updated_at_utc
FROM samples WHERE name = ?`, name).Scan(
			&sample.Name, &sample.Description, &sample.Source, &options, &sample.Builtin, &updated)
	})
	if err != nil {
		if isNoRows(err) {
			return Sample{}, errors.AddContext(
				errors.Newf(errors.CodeNotFound, "sample %q not found", name), errors.CtxSymbol, name)
		}
		return Sample{}, err
	}
	sample.Options = splitOptions(options)
	sample.UpdatedAt = parseTime(updated)
	return sample, nil
}

// List returns every sample without its source, ordered by name.
func (s *Store) List(ctx context.Context) ([]Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("list samples", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, `
SELECT name, description, options, builtin, updated_at_utc
FROM samples ORDER BY name ASC`)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Sample, 0)
	for rows.Next() {
		var (
			sample  Sample
			options string
			updated string
		)
		if err := rows.Scan(&sample.Name, &sample.Description, &options, &sample.Builtin, &updated); err != nil {
			return nil, fmt.Errorf("scan sample row: %w", err)
		}
		sample.Options = splitOptions(options)
		sample.UpdatedAt = parseTime(updated)
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample rows: %w", err)
	}
	return out, nil
}

// Delete removes a sample; a missing name is NOT_FOUND.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	err := s.withRetry("delete sample", func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM samples WHERE name = ?`, name)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Newf(errors.CodeNotFound, "sample %q not found", name)
	}
	return nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	if isNoRows(lastErr) {
		return lastErr
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func isNoRows(err error) bool {
	return err == sql.ErrNoRows
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func parseTime(raw string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
