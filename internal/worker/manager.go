package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/logging"
	"marketplace/internal/queue"
)

// TaskStore is the queue surface the manager drives.
type TaskStore interface {
	Claim(ctx context.Context, kinds ...queue.Kind) (*queue.Task, error)
	Complete(ctx context.Context, id int64) error
	Fail(ctx context.Context, id int64, cause error) (queue.Status, error)
	UpdateHeartbeat(ctx context.Context, id int64) error
	ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
}

// FailureNotifier is told when a task fails for good.
type FailureNotifier interface {
	TaskFailed(ctx context.Context, task *queue.Task, cause error)
}

// TaskObserver records the outcome of every executed task. Results are
// "done", "retry" and "failed".
type TaskObserver interface {
	ObserveTask(kind queue.Kind, result string, elapsed time.Duration)
}

// Manager coordinates queue processing using registered handlers.
type Manager struct {
	store        TaskStore
	logger       *slog.Logger
	pollInterval time.Duration
	retryDelay   time.Duration
	notifier     FailureNotifier
	observer     TaskObserver

	heartbeat *HeartbeatMonitor

	lanes     map[string]*lane
	laneOrder []string

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastTask *queue.Task
	counts   map[queue.Kind]*kindCounts
}

type lane struct {
	name         string
	kinds        []queue.Kind
	handlers     map[queue.Kind]Handler
	logger       *slog.Logger
	runReclaimer bool
}

type kindCounts struct {
	succeeded int
	failed    int
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithFailureNotifier reports permanently failed tasks.
func WithFailureNotifier(n FailureNotifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithObserver reports task outcomes, typically to metrics.
func WithObserver(o TaskObserver) Option {
	return func(m *Manager) { m.observer = o }
}

// NewManager constructs a manager with intervals from cfg.
func NewManager(cfg *config.Config, store TaskStore, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		store:        store,
		logger:       logger,
		pollInterval: cfg.PollInterval(),
		retryDelay:   cfg.ErrorRetryInterval(),
		heartbeat:    NewHeartbeatMonitor(store, logger, cfg.HeartbeatInterval(), cfg.HeartbeatTimeout()),
		lanes:        make(map[string]*lane),
		counts:       make(map[queue.Kind]*kindCounts),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register binds handler to kind on the named lane. Tasks on one lane run
// sequentially; separate lanes run concurrently. The first lane registered
// also reclaims stale tasks.
func (m *Manager) Register(laneName string, kind queue.Kind, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("register %s: nil handler", kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("register %s: manager already running", kind)
	}
	for _, existing := range m.lanes {
		if _, dup := existing.handlers[kind]; dup {
			return fmt.Errorf("register %s: kind already handled by lane %s", kind, existing.name)
		}
	}
	l := m.lanes[laneName]
	if l == nil {
		l = &lane{name: laneName, handlers: make(map[queue.Kind]Handler), runReclaimer: len(m.lanes) == 0}
		m.lanes[laneName] = l
		m.laneOrder = append(m.laneOrder, laneName)
	}
	l.kinds = append(l.kinds, kind)
	l.handlers[kind] = handler
	return nil
}
