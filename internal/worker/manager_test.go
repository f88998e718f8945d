package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketplace/internal/queue"
	"marketplace/internal/services"
	"marketplace/internal/testsupport"
	"marketplace/internal/worker"
)

type recordingNotifier struct {
	mu     sync.Mutex
	failed []int64
}

func (r *recordingNotifier) TaskFailed(_ context.Context, task *queue.Task, _ error) {
	r.mu.Lock()
	r.failed = append(r.failed, task.ID)
	r.mu.Unlock()
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failed)
}

type recordingObserver struct {
	mu      sync.Mutex
	results []string
}

func (r *recordingObserver) ObserveTask(kind queue.Kind, result string, _ time.Duration) {
	r.mu.Lock()
	r.results = append(r.results, string(kind)+":"+result)
	r.mu.Unlock()
}

func (r *recordingObserver) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.results...)
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Task {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		task, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if task.Status == want {
			return task
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("task %d never reached %s", id, want)
	return nil
}

func TestManagerProcessesTasksAcrossLanes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	ctx := context.Background()

	var mu sync.Mutex
	seen := map[queue.Kind]int{}
	record := worker.HandlerFunc(func(_ context.Context, task *queue.Task) error {
		mu.Lock()
		seen[task.Kind]++
		mu.Unlock()
		return nil
	})

	mgr := worker.NewManager(cfg, store, nil)
	if err := mgr.Register("stats", queue.KindIndexStats, record); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := mgr.Register("mail", queue.KindSendMail, record); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := mgr.Register("mail", queue.KindSendMail, record); err == nil {
		t.Fatal("expected duplicate kind registration to fail")
	}

	statsTask, err := store.Enqueue(ctx, queue.KindIndexStats, map[string]any{"ids": []int{1}})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	mailTask, err := store.Enqueue(ctx, queue.KindSendMail, map[string]string{"to": "dev@example.com"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mgr.Stop()

	waitForStatus(t, store, statsTask.ID, queue.StatusDone)
	waitForStatus(t, store, mailTask.ID, queue.StatusDone)

	mu.Lock()
	if seen[queue.KindIndexStats] != 1 || seen[queue.KindSendMail] != 1 {
		t.Fatalf("unexpected executions: %v", seen)
	}
	mu.Unlock()

	summary := mgr.Status(ctx)
	if !summary.Running || len(summary.Kinds) != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.TaskStats[queue.StatusDone] != 2 {
		t.Fatalf("expected 2 done tasks, got %v", summary.TaskStats)
	}
}

func TestCompletionSurvivesShutdown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	ctx := context.Background()

	started := make(chan struct{})
	mgr := worker.NewManager(cfg, store, nil)
	if err := mgr.Register("mail", queue.KindSendMail, worker.HandlerFunc(func(taskCtx context.Context, _ *queue.Task) error {
		close(started)
		// The work finishes even though shutdown began meanwhile.
		<-taskCtx.Done()
		return nil
	})); err != nil {
		t.Fatalf("Register: %v", err)
	}
	task, err := store.Enqueue(ctx, queue.KindSendMail, map[string]string{"to": "dev@example.com"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-started:
	case <-time.After(10 * time.Second):
		t.Fatal("handler never started")
	}
	mgr.Stop()

	got, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusDone {
		t.Fatalf("status = %s, want done", got.Status)
	}
}

func TestManagerFailsPermanentErrorsAndNotifies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	ctx := context.Background()

	notifier := &recordingNotifier{}
	observer := &recordingObserver{}
	mgr := worker.NewManager(cfg, store, nil, worker.WithFailureNotifier(notifier), worker.WithObserver(observer))
	if err := mgr.Register("stats", queue.KindIndexStats, worker.HandlerFunc(func(context.Context, *queue.Task) error {
		return services.Wrap(services.ErrValidation, "stats", "index", "bad payload", errors.New("unknown kind"))
	})); err != nil {
		t.Fatalf("Register: %v", err)
	}

	task, err := store.Enqueue(ctx, queue.KindIndexStats, map[string]string{"kind": "bogus"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	failed := waitForStatus(t, store, task.ID, queue.StatusFailed)
	mgr.Stop()

	if failed.Attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", failed.Attempts)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected one failure notification, got %d", notifier.count())
	}
	if got := observer.snapshot(); len(got) != 1 || got[0] != string(queue.KindIndexStats)+":failed" {
		t.Fatalf("unexpected observations: %v", got)
	}
	summary := mgr.Status(ctx)
	if summary.Running || summary.LastError == "" {
		t.Fatalf("unexpected summary after stop: %+v", summary)
	}
}

func TestStartWithoutHandlers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	mgr := worker.NewManager(cfg, store, nil)
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("expected error when no handlers are registered")
	}
}
