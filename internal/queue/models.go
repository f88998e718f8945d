package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusRunning, StatusDone, StatusFailed}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus maps user input to a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStatuses {
		if s == normalized {
			return s, true
		}
	}
	return "", false
}

// Kind names the handler that processes a task.
type Kind string

const (
	KindIndexStats Kind = "index_stats"
	KindSendMail   Kind = "send_mail"
)

// Task is a unit of background work.
type Task struct {
	ID            int64
	Kind          Kind
	Payload       json.RawMessage
	Status        Status
	Attempts      int
	MaxAttempts   int
	ErrorMessage  string
	AvailableAt   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
	LastHeartbeat *time.Time
}

// Decode unmarshals the payload into target.
func (t *Task) Decode(target any) error {
	if len(t.Payload) == 0 {
		return fmt.Errorf("task %d has no payload", t.ID)
	}
	if err := json.Unmarshal(t.Payload, target); err != nil {
		return fmt.Errorf("decode %s payload for task %d: %w", t.Kind, t.ID, err)
	}
	return nil
}

// IsTerminal reports whether the task will not run again without a retry.
func (t *Task) IsTerminal() bool {
	return t.Status == StatusDone || t.Status == StatusFailed
}

// HealthSummary aggregates task counts for diagnostic output.
type HealthSummary struct {
	Total   int
	Pending int
	Running int
	Done    int
	Failed  int
}

// DatabaseHealth reports low-level diagnostics about the tasks database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	IntegrityCheck   bool
	TotalTasks       int
	Error            string
}
