package queue

import (
	"context"
	"fmt"
	"time"

	"marketplace/internal/services"
	"marketplace/internal/sqlitedb"
)

// Complete marks a running task done.
func (s *Store) Complete(ctx context.Context, id int64) error {
	stamp := s.stamp()
	res, err := s.db.Exec(ctx,
		`UPDATE tasks SET status = ?, finished_at = ?, updated_at = ?, last_heartbeat = NULL, error_message = NULL
         WHERE id = ? AND status = ?`,
		StatusDone, stamp, stamp, id, StatusRunning)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("complete task %d: %w", id, ErrNotFound)
	}
	return nil
}

// Fail records a handler failure. Permanent errors and exhausted attempts
// move the task to failed; anything else returns it to pending after the
// retry delay. It reports the status the task ended in.
func (s *Store) Fail(ctx context.Context, id int64, cause error) (Status, error) {
	task, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}
	now := s.now()
	stamp := sqlitedb.FormatTime(now)

	next := StatusPending
	if services.Permanent(cause) || task.Attempts >= task.MaxAttempts {
		next = StatusFailed
	}
	var finished any
	available := task.AvailableAt
	if next == StatusFailed {
		finished = stamp
	} else {
		available = now.Add(s.backoff(task.Attempts))
	}
	if _, err := s.db.Exec(ctx,
		`UPDATE tasks SET status = ?, error_message = ?, available_at = ?, finished_at = ?,
             last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		next, message, sqlitedb.FormatTime(available), finished, stamp, id, StatusRunning,
	); err != nil {
		return "", fmt.Errorf("fail task: %w", err)
	}
	return next, nil
}

// backoff doubles the retry delay per completed attempt.
func (s *Store) backoff(attempts int) time.Duration {
	delay := s.retryDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
	}
	return delay
}

// UpdateHeartbeat updates the last heartbeat timestamp for a running task.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	stamp := s.stamp()
	if _, err := s.db.Exec(ctx,
		`UPDATE tasks SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		stamp, stamp, id, StatusRunning,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStale returns running tasks whose heartbeat is older than cutoff to
// pending so another worker can pick them up.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	stamp := s.stamp()
	res, err := s.db.Exec(ctx,
		`UPDATE tasks SET status = ?, last_heartbeat = NULL, available_at = ?, updated_at = ?,
             error_message = 'Reclaimed from stale processing'
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusPending, stamp, stamp, StatusRunning, sqlitedb.FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("reclaim stale tasks: %w", err)
	}
	return res.RowsAffected()
}

// ResetRunning returns every running task to pending. The daemon calls it on
// startup, when no worker can still own a task.
func (s *Store) ResetRunning(ctx context.Context) (int64, error) {
	stamp := s.stamp()
	res, err := s.db.Exec(ctx,
		`UPDATE tasks SET status = ?, last_heartbeat = NULL, available_at = ?, updated_at = ?
         WHERE status = ?`,
		StatusPending, stamp, stamp, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("reset running tasks: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed tasks back to pending with a fresh attempt budget.
// With no ids it retries every failed task.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	stamp := s.stamp()
	query := `UPDATE tasks SET status = ?, attempts = 0, error_message = NULL, finished_at = NULL,
        available_at = ?, updated_at = ? WHERE status = ?`
	args := []any{StatusPending, stamp, stamp, StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + sqlitedb.Placeholders(len(ids)) + `)`
		args = append(args, sqlitedb.Int64Args(ids)...)
	}
	res, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed tasks: %w", err)
	}
	return res.RowsAffected()
}
