package worker

import (
	"context"

	"marketplace/internal/queue"
)

// Handler executes one kind of task.
type Handler interface {
	Execute(ctx context.Context, task *queue.Task) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, task *queue.Task) error

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, task *queue.Task) error {
	return f(ctx, task)
}

// Health summarizes the readiness of a handler.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// HealthChecker is implemented by handlers that can report readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
