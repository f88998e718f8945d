package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"marketplace/internal/logging"
	"marketplace/internal/queue"
	"marketplace/internal/services"
)

const finishTimeout = 5 * time.Second

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("worker already running")
	}
	lanes := make([]*lane, 0, len(m.laneOrder))
	for _, name := range m.laneOrder {
		if l := m.lanes[name]; l != nil && len(l.kinds) > 0 {
			lanes = append(lanes, l)
		}
	}
	if len(lanes) == 0 {
		m.mu.Unlock()
		return errors.New("no task handlers registered")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	for _, l := range lanes {
		l.logger = m.logger.With(logging.String(logging.FieldComponent, "worker"), logging.String("lane", l.name))
	}
	m.wg.Add(len(lanes))
	m.mu.Unlock()

	for _, l := range lanes {
		go m.runLane(runCtx, l)
	}
	return nil
}

// Stop terminates background processing and waits for in-flight tasks.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runLane(ctx context.Context, l *lane) {
	defer m.wg.Done()
	logger := l.logger

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if l.runReclaimer {
			if err := m.heartbeat.ReclaimStaleTasks(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("reclaim stale tasks failed; stuck tasks may remain",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
					logging.String(logging.FieldErrorHint, "check tasks database access"),
				)
			}
		}

		task, err := m.store.Claim(ctx, l.kinds...)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if task == nil {
			m.wait(ctx, m.pollInterval)
			continue
		}

		m.processTask(ctx, l, logger, task)
	}
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to claim next task",
		logging.Error(err),
		logging.String(logging.FieldEventType, "task_claim_failed"),
		logging.String(logging.FieldErrorHint, "check tasks database access"),
	)
	m.wait(ctx, m.retryDelay)
}

func (m *Manager) wait(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (m *Manager) processTask(ctx context.Context, l *lane, laneLogger *slog.Logger, task *queue.Task) {
	taskCtx := services.WithTaskKind(services.WithTaskID(ctx, task.ID), string(task.Kind))
	logger := logging.WithContext(taskCtx, laneLogger)

	handler := l.handlers[task.Kind]
	if handler == nil {
		m.recordFailure(taskCtx, logger, task, services.Wrap(services.ErrConfiguration, "worker", "dispatch",
			fmt.Sprintf("no handler for %s", task.Kind), nil))
		return
	}

	start := time.Now()
	logger.Debug("task started",
		logging.String(logging.FieldEventType, "task_start"),
		logging.Int("attempt", task.Attempts),
	)

	execErr := m.executeWithHeartbeat(taskCtx, handler, task)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) && ctx.Err() != nil {
			// Shutdown: the task stays running and is reset on next start.
			logger.Debug("task interrupted by shutdown")
			return
		}
		finishCtx, cancel := finishContext(taskCtx)
		defer cancel()
		if result := m.recordFailure(finishCtx, logger, task, execErr); result != "" {
			m.observe(task, result, time.Since(start))
		}
		return
	}

	finishCtx, cancel := finishContext(taskCtx)
	defer cancel()
	if err := m.store.Complete(finishCtx, task.ID); err != nil {
		logger.Error("failed to persist task completion", logging.Error(err))
		m.setLastError(err)
		return
	}
	m.count(task.Kind, true)
	m.setLastTask(task)
	m.observe(task, "done", time.Since(start))
	logger.Info("task completed",
		logging.String(logging.FieldEventType, "task_complete"),
		logging.Duration("task_duration", time.Since(start)),
	)
}

// finishContext outlives a shutdown so the outcome of a task that already
// ran is still stored.
func finishContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler Handler, task *queue.Task) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, task.ID)

	execErr := handler.Execute(ctx, task)
	hbCancel()
	hbWG.Wait()
	return execErr
}

// recordFailure persists a failed attempt and returns "retry" or "failed",
// or "" when the failure could not be stored.
func (m *Manager) recordFailure(ctx context.Context, logger *slog.Logger, task *queue.Task, cause error) string {
	m.setLastError(cause)
	m.setLastTask(task)
	status, err := m.store.Fail(ctx, task.ID, cause)
	if err != nil {
		logger.Error("failed to persist task failure", logging.Error(err), logging.String("cause", cause.Error()))
		return ""
	}
	if status == queue.StatusPending {
		logger.Warn("task failed; will retry",
			logging.Error(cause),
			logging.Int("attempt", task.Attempts),
			logging.String(logging.FieldEventType, "task_retry"),
		)
		return "retry"
	}
	m.count(task.Kind, false)
	logging.ErrorWithContext(logger, "task failed permanently", "task_failed",
		logging.Error(cause),
		logging.Int("attempts", task.Attempts),
		logging.String(logging.FieldImpact, "task will not run again until retried"),
		logging.String(logging.FieldErrorHint, "inspect with 'mkt tasks list --status failed' and retry"),
	)
	if m.notifier != nil {
		m.notifier.TaskFailed(ctx, task, cause)
	}
	return "failed"
}

func (m *Manager) observe(task *queue.Task, result string, elapsed time.Duration) {
	if m.observer != nil {
		m.observer.ObserveTask(task.Kind, result, elapsed)
	}
}
