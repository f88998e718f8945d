package stats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/logging"
	"marketplace/internal/notifications"
	"marketplace/internal/queue"
	"marketplace/internal/services"
	"marketplace/internal/store"
)

// Source reads raw and indexed stats rows.
type Source interface {
	StatsIDs(ctx context.Context, kind store.StatsKind, filter store.StatsFilter) ([]int64, error)
	StatsDateLimits(ctx context.Context, kind store.StatsKind) (time.Time, time.Time, bool, error)
	StatsAddons(ctx context.Context, kind store.StatsKind) ([]int64, error)
	StatsRowIDsForAddon(ctx context.Context, kind store.StatsKind, addonID int64) ([]int64, error)
	IndexedCount(ctx context.Context, kind store.StatsKind, addonID int64) (int, error)
	IndexedIDs(ctx context.Context, kind store.StatsKind, addonID int64, limit int) ([]int64, error)
}

// BatchEnqueuer queues a set of tasks atomically.
type BatchEnqueuer interface {
	EnqueueBatch(ctx context.Context, kind queue.Kind, payloads []any) ([]int64, error)
}

// IndexPayload is the body of an index_stats task.
type IndexPayload struct {
	Kind store.StatsKind `json:"kind"`
	IDs  []int64         `json:"ids"`
}

// Options selects what Plan indexes. From and To are inclusive
// YYYY-MM-DD days; To defaults to From.
type Options struct {
	Addons []int64
	From   string
	To     string
	Fixup  bool
}

// Result counts the work a plan queued.
type Result struct {
	Tasks   int
	Rows    int
	Batches int
}

func (r *Result) add(other Result) {
	r.Tasks += other.Tasks
	r.Rows += other.Rows
	r.Batches += other.Batches
}

// Planner turns index requests into queued tasks.
type Planner struct {
	source      Source
	queue       BatchEnqueuer
	logger      *slog.Logger
	notifier    notifications.Service
	chunkSize   int
	step        int
	fixupWindow int
	now         func() time.Time
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithNotifier publishes EventStatsIndexed after each plan that queued work.
func WithNotifier(svc notifications.Service) PlannerOption {
	return func(p *Planner) { p.notifier = svc }
}

// WithClock overrides the planner's notion of today.
func WithClock(now func() time.Time) PlannerOption {
	return func(p *Planner) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPlanner builds a planner using the [tasks] and [stats] settings.
func NewPlanner(cfg *config.Config, source Source, q BatchEnqueuer, logger *slog.Logger, opts ...PlannerOption) *Planner {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Planner{
		source:      source,
		queue:       q,
		logger:      logging.NewComponentLogger(logger, "stats"),
		chunkSize:   positive(cfg.Tasks.ChunkSize, 50),
		step:        positive(cfg.Stats.StepDays, 5),
		fixupWindow: positive(cfg.Stats.FixupWindow, 5000),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func positive(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

// Kinds returns the tables indexed for opts, in indexing order. Collection
// counts cannot be filtered by addon and are skipped when addons are given.
func Kinds(opts Options) []store.StatsKind {
	kinds := []store.StatsKind{store.StatsUpdateCounts, store.StatsDownloadCounts, store.StatsInstalled}
	if len(opts.Addons) == 0 {
		kinds = append(kinds, store.StatsCollectionCounts)
	}
	return kinds
}

// Plan queues index tasks for opts. When opts.Fixup is set, Fixup runs first.
func (p *Planner) Plan(ctx context.Context, opts Options) (Result, error) {
	var total Result
	if opts.Fixup {
		res, err := p.Fixup(ctx)
		if err != nil {
			return total, err
		}
		total.add(res)
	}
	if opts.To == "" {
		opts.To = opts.From
	}

	for _, kind := range Kinds(opts) {
		res, err := p.planKind(ctx, kind, opts)
		if err != nil {
			return total, err
		}
		total.add(res)
	}

	p.logger.Info("stats indexing planned",
		logging.String(logging.FieldEventType, "stats_planned"),
		logging.Int("tasks", total.Tasks),
		logging.Int("rows", total.Rows),
		logging.Int("batches", total.Batches),
	)
	p.notify(ctx, total)
	return total, nil
}

func (p *Planner) planKind(ctx context.Context, kind store.StatsKind, opts Options) (Result, error) {
	filter := store.StatsFilter{AddonIDs: opts.Addons, From: opts.From, To: opts.To}
	if opts.From != "" || len(opts.Addons) > 0 {
		ids, err := p.source.StatsIDs(ctx, kind, filter)
		if err != nil {
			return Result{}, err
		}
		return p.createTasks(ctx, kind, ids)
	}

	minDay, maxDay, ok, err := p.source.StatsDateLimits(ctx, kind)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		p.logger.Debug("no stats rows to index", logging.String("kind", string(kind)))
		return Result{}, nil
	}

	var total Result
	numDays := int(maxDay.Sub(minDay).Hours() / 24)
	today := truncateDay(p.now())
	for start := 0; start < numDays; start += p.step {
		stop := start + p.step
		window := store.StatsFilter{
			From: today.AddDate(0, 0, -stop).Format(time.DateOnly),
			To:   today.AddDate(0, 0, -start).Format(time.DateOnly),
		}
		ids, err := p.source.StatsIDs(ctx, kind, window)
		if err != nil {
			return total, err
		}
		res, err := p.createTasks(ctx, kind, ids)
		if err != nil {
			return total, err
		}
		total.add(res)
	}
	return total, nil
}

// Fixup re-queues update and download count rows missing from the index.
func (p *Planner) Fixup(ctx context.Context) (Result, error) {
	var total Result
	for _, kind := range []store.StatsKind{store.StatsUpdateCounts, store.StatsDownloadCounts} {
		addons, err := p.source.StatsAddons(ctx, kind)
		if err != nil {
			return total, err
		}
		for _, addonID := range addons {
			res, err := p.fixupAddon(ctx, kind, addonID)
			if err != nil {
				return total, err
			}
			total.add(res)
		}
	}
	return total, nil
}

func (p *Planner) fixupAddon(ctx context.Context, kind store.StatsKind, addonID int64) (Result, error) {
	all, err := p.source.StatsRowIDsForAddon(ctx, kind, addonID)
	if err != nil {
		return Result{}, err
	}
	indexed, err := p.source.IndexedCount(ctx, kind, addonID)
	if err != nil {
		return Result{}, err
	}
	if len(all) == indexed {
		return Result{}, nil
	}
	seen, err := p.source.IndexedIDs(ctx, kind, addonID, p.fixupWindow)
	if err != nil {
		return Result{}, err
	}
	known := make(map[int64]struct{}, len(seen))
	for _, id := range seen {
		known[id] = struct{}{}
	}
	missing := make([]int64, 0, len(all))
	for _, id := range all {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	p.logger.Info(fmt.Sprintf("Missing %d rows for %d.", len(missing), addonID),
		logging.String(logging.FieldEventType, "stats_fixup"),
		logging.String("kind", string(kind)),
		logging.Int64(logging.FieldAddonID, addonID),
		logging.Int("missing", len(missing)),
	)
	return p.createTasks(ctx, kind, missing)
}

// createTasks enqueues ids in chunks as one batch.
func (p *Planner) createTasks(ctx context.Context, kind store.StatsKind, ids []int64) (Result, error) {
	if len(ids) == 0 {
		return Result{}, nil
	}
	chunks := Chunk(ids, p.chunkSize)
	payloads := make([]any, 0, len(chunks))
	for _, chunk := range chunks {
		payloads = append(payloads, IndexPayload{Kind: kind, IDs: chunk})
	}
	if _, err := p.queue.EnqueueBatch(ctx, queue.KindIndexStats, payloads); err != nil {
		return Result{}, fmt.Errorf("queue %s index tasks: %w", kind, err)
	}
	return Result{Tasks: len(payloads), Rows: len(ids), Batches: 1}, nil
}

func (p *Planner) notify(ctx context.Context, res Result) {
	if p.notifier == nil || res.Tasks == 0 {
		return
	}
	payload := notifications.Payload{"tasks": res.Tasks, "rows": res.Rows}
	if err := p.notifier.Publish(ctx, notifications.EventStatsIndexed, payload); err != nil {
		logging.WarnWithContext(p.logger, "stats notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "operators are not told about queued stats work"),
		)
	}
}

// Chunk splits ids into consecutive slices of at most size elements.
func Chunk(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = len(ids)
	}
	var chunks [][]int64
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end:end])
	}
	return chunks
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseAddons parses a comma separated list of addon ids.
func ParseAddons(value string) ([]int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(value, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "stats", "parse addons", fmt.Sprintf("invalid addon id %q", part), nil)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseDates accepts YYYY-MM-DD or an inclusive YYYY-MM-DD:YYYY-MM-DD range.
func ParseDates(value string) (from, to string, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "", nil
	}
	from, to = value, value
	if left, right, ok := strings.Cut(value, ":"); ok {
		from, to = left, right
	}
	for _, day := range []string{from, to} {
		if _, err := time.Parse(time.DateOnly, day); err != nil {
			return "", "", services.Wrap(services.ErrValidation, "stats", "parse dates", fmt.Sprintf("invalid date %q; use YYYY-MM-DD", day), nil)
		}
	}
	if from > to {
		return "", "", services.Wrap(services.ErrValidation, "stats", "parse dates", "range start is after its end", nil)
	}
	return from, to, nil
}
