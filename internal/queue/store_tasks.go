package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"marketplace/internal/sqlitedb"
)

const taskColumns = `id, kind, payload_json, status, attempts, max_attempts, error_message,
    available_at, created_at, updated_at, started_at, finished_at, last_heartbeat`

func scanTask(row sqlitedb.Scanner) (*Task, error) {
	var (
		t                                   Task
		payload                             string
		errMsg, available, created, updated sql.NullString
		started, finished, heartbeat        sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Kind, &payload, &t.Status, &t.Attempts, &t.MaxAttempts, &errMsg,
		&available, &created, &updated, &started, &finished, &heartbeat); err != nil {
		return nil, err
	}
	t.Payload = json.RawMessage(payload)
	t.ErrorMessage = errMsg.String
	t.AvailableAt = sqlitedb.TimeFrom(available)
	t.CreatedAt = sqlitedb.TimeFrom(created)
	t.UpdatedAt = sqlitedb.TimeFrom(updated)
	t.StartedAt = sqlitedb.TimePtrFrom(started)
	t.FinishedAt = sqlitedb.TimePtrFrom(finished)
	t.LastHeartbeat = sqlitedb.TimePtrFrom(heartbeat)
	return &t, nil
}

func encodePayload(payload any) (string, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		return string(raw), nil
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(encoded), nil
}

// Enqueue inserts a pending task of kind with payload encoded as JSON.
func (s *Store) Enqueue(ctx context.Context, kind Kind, payload any) (*Task, error) {
	ids, err := s.EnqueueBatch(ctx, kind, []any{payload})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, ids[0])
}

// EnqueueBatch inserts one pending task per payload in a single transaction
// and returns the new ids in order.
func (s *Store) EnqueueBatch(ctx context.Context, kind Kind, payloads []any) ([]int64, error) {
	if strings.TrimSpace(string(kind)) == "" {
		return nil, errors.New("task kind is required")
	}
	encoded := make([]string, 0, len(payloads))
	for _, p := range payloads {
		raw, err := encodePayload(p)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, raw)
	}
	var ids []int64
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		ids = ids[:0]
		stamp := s.stamp()
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO tasks (kind, payload_json, status, attempts, max_attempts, available_at, created_at, updated_at)
             VALUES (?, ?, ?, 0, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()
		for _, raw := range encoded {
			res, err := stmt.ExecContext(ctx, kind, raw, StatusPending, s.maxAttempts, stamp, stamp, stamp)
			if err != nil {
				return fmt.Errorf("insert task: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("last insert id: %w", err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetByID fetches a task by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// List returns tasks filtered by status (all when none given), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + sqlitedb.Placeholders(len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Claim atomically moves the oldest available pending task of one of kinds
// to running and returns it. It returns nil when nothing is ready.
func (s *Store) Claim(ctx context.Context, kinds ...Kind) (*Task, error) {
	if len(kinds) == 0 {
		return nil, errors.New("claim requires at least one kind")
	}
	var claimed *Task
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		claimed = nil
		stamp := s.stamp()
		args := []any{StatusPending, stamp}
		for _, k := range kinds {
			args = append(args, k)
		}
		var id int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM tasks WHERE status = ? AND available_at <= ? AND kind IN (`+
				sqlitedb.Placeholders(len(kinds))+`) ORDER BY available_at, id LIMIT 1`, args...,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select claimable: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status = ?, attempts = attempts + 1, started_at = ?, last_heartbeat = ?,
                 updated_at = ?, error_message = NULL
             WHERE id = ? AND status = ?`,
			StatusRunning, stamp, stamp, stamp, id, StatusPending)
		if err != nil {
			return fmt.Errorf("mark running: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		claimed, err = scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
		if err != nil {
			return fmt.Errorf("reload claimed task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	return claimed, nil
}
