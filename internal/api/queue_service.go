package api

import (
	"context"
	"errors"

	"marketplace/internal/queue"
)

// TaskReader abstracts queue persistence interactions needed for task queries.
type TaskReader interface {
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Task, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	GetByID(ctx context.Context, id int64) (*queue.Task, error)
}

// TaskService exposes read-only task operations returning API DTOs.
type TaskService struct {
	store TaskReader
}

// NewTaskService constructs a TaskService around the provided reader.
func NewTaskService(store TaskReader) *TaskService {
	if store == nil {
		return nil
	}
	return &TaskService{store: store}
}

// List returns tasks filtered by status, newest first.
func (s *TaskService) List(ctx context.Context, statuses ...queue.Status) ([]Task, error) {
	if s == nil || s.store == nil {
		return []Task{}, nil
	}
	tasks, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return SortTasksNewestFirst(FromTasks(tasks)), nil
}

// Stats returns task counts keyed by status string.
func (s *TaskService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return MergeQueueStats(nil), nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single task. A missing task returns nil without error.
func (s *TaskService) Describe(ctx context.Context, id int64) (*Task, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	task, err := s.store.GetByID(ctx, id)
	if errors.Is(err, queue.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	dto := FromTask(task)
	return &dto, nil
}
