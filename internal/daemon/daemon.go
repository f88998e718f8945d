package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"marketplace/internal/config"
	"marketplace/internal/devhub"
	"marketplace/internal/logging"
	"marketplace/internal/metrics"
	"marketplace/internal/queue"
	"marketplace/internal/stats"
	"marketplace/internal/store"
	"marketplace/internal/worker"
)

// Deps are the long-lived services a daemon coordinates.
type Deps struct {
	Store   *store.Store
	Queue   *queue.Store
	Worker  *worker.Manager
	Planner *stats.Planner
	Hub     *devhub.Service
	Metrics *metrics.Metrics
}

// Daemon coordinates background processing, the HTTP API, and scheduled
// indexing, and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	queue   *queue.Store
	worker  *worker.Manager
	planner *stats.Planner
	api     *apiServer
	sched   *scheduler

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	TasksDBPath  string
	LockFilePath string
	Schedules    []ScheduledJob
	Worker       worker.StatusSummary
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || deps.Store == nil || deps.Queue == nil || deps.Worker == nil {
		return nil, errors.New("daemon requires config, stores, and worker manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    deps.Store,
		queue:    deps.Queue,
		worker:   deps.Worker,
		planner:  deps.Planner,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	sched, err := newScheduler(cfg, deps.Planner, logger)
	if err != nil {
		return nil, err
	}
	d.sched = sched
	if deps.Hub != nil {
		d.api = newAPIServer(cfg, d, deps.Hub, deps.Metrics, logger)
	}
	if deps.Metrics != nil {
		if err := deps.Metrics.RegisterQueue(deps.Queue); err != nil {
			return nil, fmt.Errorf("register queue metrics: %w", err)
		}
	}
	return d, nil
}

// Start acquires the daemon lock, recovers interrupted tasks, and launches
// the worker, the API server, and the scheduler.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another marketplace daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	fail := func(err error) error {
		cancel()
		d.worker.Stop()
		_ = d.lock.Unlock()
		return err
	}

	reset, err := d.queue.ResetRunning(runCtx)
	if err != nil {
		return fail(fmt.Errorf("reset running tasks: %w", err))
	}
	if reset > 0 {
		d.logger.Info("requeued interrupted tasks", logging.Int64("count", reset))
	}
	if err := d.worker.Start(runCtx); err != nil {
		return fail(fmt.Errorf("start worker: %w", err))
	}
	if err := d.api.start(runCtx); err != nil {
		return fail(err)
	}
	d.sched.start(runCtx)

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("marketplace daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.sched.stop()
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.worker.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("marketplace daemon stopped")
}

// Close stops the daemon and closes both databases.
func (d *Daemon) Close() error {
	d.Stop()
	return errors.Join(d.queue.Close(), d.store.Close())
}

// Addr returns the API listener address, or "" when the API is not serving.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.Database.Path,
		TasksDBPath:  d.queue.Path(),
		LockFilePath: d.lockPath,
		Schedules:    d.sched.jobs(),
		Worker:       d.worker.Status(ctx),
	}
}

// ListTasks returns tasks filtered by optional statuses.
func (d *Daemon) ListTasks(ctx context.Context, statuses []queue.Status) ([]*queue.Task, error) {
	return d.queue.List(ctx, statuses...)
}

// ClearTasks removes every task.
func (d *Daemon) ClearTasks(ctx context.Context) (int64, error) {
	return d.queue.Clear(ctx)
}

// ClearCompleted removes finished tasks.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.queue.ClearCompleted(ctx)
}

// ClearFailed removes failed tasks.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	return d.queue.ClearFailed(ctx)
}

// RetryFailed resets failed tasks (optionally a subset) back to pending.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	return d.queue.RetryFailed(ctx, ids...)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.queue.Health(ctx)
}

// RunIndex plans stats indexing immediately, outside the schedule.
func (d *Daemon) RunIndex(ctx context.Context, opts stats.Options) (stats.Result, error) {
	if d.planner == nil {
		return stats.Result{}, errors.New("stats planner unavailable")
	}
	return d.planner.Plan(ctx, opts)
}
