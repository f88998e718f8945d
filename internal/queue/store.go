package queue

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/sqlitedb"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 10 * time.Second
)

// ErrNotFound is returned when a task id does not exist.
var ErrNotFound = errors.New("queue: task not found")

// Store manages task persistence backed by SQLite.
type Store struct {
	db          *sqlitedb.DB
	now         func() time.Time
	maxAttempts int
	retryDelay  time.Duration
}

// Open initializes or connects to the tasks database at database.tasks_path.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	st, err := OpenPath(context.Background(), cfg.Database.TasksPath)
	if err != nil {
		return nil, err
	}
	st.maxAttempts = cfg.Tasks.MaxAttempts
	st.retryDelay = cfg.ErrorRetryInterval()
	return st, nil
}

// OpenPath opens a tasks database at an explicit location with default retry policy.
func OpenPath(ctx context.Context, path string) (*Store, error) {
	db, err := sqlitedb.Open(ctx, path, sqlitedb.Schema{
		SQL:       schemaSQL,
		Version:   schemaVersion,
		ResetHint: "run 'mkt tasks clear --all' or delete " + path,
	})
	if err != nil {
		return nil, err
	}
	return &Store{
		db:          db,
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetClock overrides the time source; tests use it to step past retry delays.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.db.Path()
}

func (s *Store) stamp() string {
	return sqlitedb.FormatTime(s.now())
}
