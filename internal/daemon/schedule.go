package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"marketplace/internal/config"
	"marketplace/internal/logging"
	"marketplace/internal/stats"
)

const statsDayLayout = "2006-01-02"

// ScheduledJob reports a cron entry and when it fires next.
type ScheduledJob struct {
	Name string
	Spec string
	Next time.Time
}

type scheduledEntry struct {
	name string
	spec string
	id   cron.EntryID
}

// scheduler runs nightly stats indexing and fixup on cron schedules.
type scheduler struct {
	cron    *cron.Cron
	planner *stats.Planner
	logger  *slog.Logger
	now     func() time.Time
	entries []scheduledEntry

	mu  sync.Mutex
	ctx context.Context
}

func newScheduler(cfg *config.Config, planner *stats.Planner, logger *slog.Logger) (*scheduler, error) {
	s := &scheduler{
		planner: planner,
		logger:  logging.NewComponentLogger(logger, "scheduler"),
		now:     time.Now,
		ctx:     context.Background(),
	}
	cronLogger := cronLog{logger: s.logger}
	s.cron = cron.New(cron.WithLogger(cronLogger), cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))
	if planner == nil {
		return s, nil
	}
	if err := s.add("index_stats", cfg.Stats.Schedule, s.runNightly); err != nil {
		return nil, err
	}
	if err := s.add("stats_fixup", cfg.Stats.FixupSchedule, s.runFixup); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *scheduler) add(name, spec string, fn func()) error {
	if spec == "" {
		return nil
	}
	id, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.entries = append(s.entries, scheduledEntry{name: name, spec: spec, id: id})
	return nil
}

func (s *scheduler) start(ctx context.Context) {
	if s == nil || len(s.entries) == 0 {
		return
	}
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
}

func (s *scheduler) stop() {
	if s == nil || len(s.entries) == 0 {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *scheduler) jobs() []ScheduledJob {
	if s == nil {
		return nil
	}
	jobs := make([]ScheduledJob, 0, len(s.entries))
	for _, e := range s.entries {
		jobs = append(jobs, ScheduledJob{Name: e.name, Spec: e.spec, Next: s.cron.Entry(e.id).Next})
	}
	return jobs
}

func (s *scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// runNightly indexes yesterday's rows.
func (s *scheduler) runNightly() {
	day := s.now().AddDate(0, 0, -1).Format(statsDayLayout)
	res, err := s.planner.Plan(s.runContext(), stats.Options{From: day})
	if err != nil {
		s.logger.Error("scheduled stats indexing failed", logging.String("date", day), logging.Error(err))
		return
	}
	s.logger.Info("scheduled stats indexing queued",
		logging.String("date", day),
		logging.Int("tasks", res.Tasks),
	)
}

func (s *scheduler) runFixup() {
	res, err := s.planner.Fixup(s.runContext())
	if err != nil {
		s.logger.Error("scheduled stats fixup failed", logging.Error(err))
		return
	}
	s.logger.Info("scheduled stats fixup queued", logging.Int("tasks", res.Tasks))
}

// cronLog adapts slog to the cron logger interface.
type cronLog struct {
	logger *slog.Logger
}

func (l cronLog) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLog) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{logging.Error(err)}, keysAndValues...)...)
}
