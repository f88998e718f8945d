package worker

import (
	"context"
	"sort"

	"marketplace/internal/logging"
	"marketplace/internal/queue"
)

// KindSummary counts outcomes for one task kind since the manager started.
type KindSummary struct {
	Kind      queue.Kind
	Lane      string
	Succeeded int
	Failed    int
}

// StatusSummary represents lightweight worker diagnostics.
type StatusSummary struct {
	Running   bool
	LastError string
	LastTask  *queue.Task
	TaskStats map[queue.Status]int
	Kinds     []KindSummary
	Health    []Health
}

// Status returns the latest worker information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastTask != nil {
		copied := *m.lastTask
		summary.LastTask = &copied
	}
	var checkers []HealthChecker
	for _, name := range m.laneOrder {
		l := m.lanes[name]
		for _, kind := range l.kinds {
			ks := KindSummary{Kind: kind, Lane: name}
			if c := m.counts[kind]; c != nil {
				ks.Succeeded, ks.Failed = c.succeeded, c.failed
			}
			summary.Kinds = append(summary.Kinds, ks)
			if hc, ok := l.handlers[kind].(HealthChecker); ok {
				checkers = append(checkers, hc)
			}
		}
	}
	m.mu.RUnlock()

	sort.Slice(summary.Kinds, func(i, j int) bool { return summary.Kinds[i].Kind < summary.Kinds[j].Kind })
	for _, hc := range checkers {
		summary.Health = append(summary.Health, hc.HealthCheck(ctx))
	}

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read task stats", logging.Error(err))
	}
	summary.TaskStats = stats
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastTask(task *queue.Task) {
	m.mu.Lock()
	if task != nil {
		copied := *task
		m.lastTask = &copied
	} else {
		m.lastTask = nil
	}
	m.mu.Unlock()
}

func (m *Manager) count(kind queue.Kind, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.counts[kind]
	if c == nil {
		c = &kindCounts{}
		m.counts[kind] = c
	}
	if ok {
		c.succeeded++
	} else {
		c.failed++
	}
}
