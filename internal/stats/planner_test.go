package stats_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"marketplace/internal/queue"
	"marketplace/internal/services"
	"marketplace/internal/stats"
	"marketplace/internal/store"
	"marketplace/internal/testsupport"
)

var today = time.Date(2012, time.January, 10, 12, 0, 0, 0, time.UTC)

type env struct {
	store *store.Store
	queue *queue.Store
}

func newEnv(t *testing.T) env {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return env{store: testsupport.MustOpenStore(t, cfg), queue: testsupport.MustOpenQueue(t, cfg)}
}

func (e env) planner(t *testing.T, logger *slog.Logger) *stats.Planner {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return stats.NewPlanner(cfg, e.store, e.queue, logger, stats.WithClock(func() time.Time { return today }))
}

func (e env) record(t *testing.T, kind store.StatsKind, addonID int64, day string) int64 {
	t.Helper()
	id, err := e.store.RecordStat(context.Background(), kind, addonID, 3, day)
	if err != nil {
		t.Fatalf("RecordStat: %v", err)
	}
	return id
}

func (e env) payloads(t *testing.T) []stats.IndexPayload {
	t.Helper()
	tasks, err := e.queue.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	out := make([]stats.IndexPayload, 0, len(tasks))
	for _, task := range tasks {
		if task.Kind != queue.KindIndexStats {
			t.Fatalf("unexpected task kind %s", task.Kind)
		}
		var p stats.IndexPayload
		if err := task.Decode(&p); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		out = append(out, p)
	}
	return out
}

func day(offset int) string {
	return today.AddDate(0, 0, offset).Format(time.DateOnly)
}

func TestPlanDateFilterChunksIDs(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 120; i++ {
		e.record(t, store.StatsUpdateCounts, 1, "2011-08-15")
	}
	e.record(t, store.StatsUpdateCounts, 1, "2011-08-16")

	res, err := e.planner(t, nil).Plan(context.Background(), stats.Options{From: "2011-08-15"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if res.Tasks != 3 || res.Rows != 120 || res.Batches != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	payloads := e.payloads(t)
	sizes := []int{len(payloads[0].IDs), len(payloads[1].IDs), len(payloads[2].IDs)}
	if sizes[0] != 50 || sizes[1] != 50 || sizes[2] != 20 {
		t.Fatalf("unexpected chunk sizes %v", sizes)
	}
}

func TestPlanWholeHistoryWalksWindowsNewestFirst(t *testing.T) {
	e := newEnv(t)
	recent := e.record(t, store.StatsUpdateCounts, 1, day(-1))
	middle := e.record(t, store.StatsUpdateCounts, 1, day(-7))
	old := e.record(t, store.StatsUpdateCounts, 1, day(-12))

	res, err := e.planner(t, nil).Plan(context.Background(), stats.Options{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if res.Tasks != 3 || res.Rows != 3 || res.Batches != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	payloads := e.payloads(t)
	want := []int64{recent, middle, old}
	for i, p := range payloads {
		if p.Kind != store.StatsUpdateCounts || len(p.IDs) != 1 || p.IDs[0] != want[i] {
			t.Fatalf("payload %d = %+v, want id %d", i, p, want[i])
		}
	}
}

func TestPlanAddonFilterSkipsCollections(t *testing.T) {
	e := newEnv(t)
	e.record(t, store.StatsUpdateCounts, 1, "2011-08-15")
	e.record(t, store.StatsDownloadCounts, 1, "2011-08-15")
	e.record(t, store.StatsDownloadCounts, 2, "2011-08-15")
	e.record(t, store.StatsCollectionCounts, 1, "2011-08-15")

	if got := stats.Kinds(stats.Options{Addons: []int64{1}}); len(got) != 3 {
		t.Fatalf("expected 3 kinds with addon filter, got %v", got)
	}
	if _, err := e.planner(t, nil).Plan(context.Background(), stats.Options{Addons: []int64{1}}); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	kinds := map[store.StatsKind]int{}
	for _, p := range e.payloads(t) {
		kinds[p.Kind] += len(p.IDs)
	}
	if kinds[store.StatsUpdateCounts] != 1 || kinds[store.StatsDownloadCounts] != 1 {
		t.Fatalf("unexpected kinds %v", kinds)
	}
	if _, ok := kinds[store.StatsCollectionCounts]; ok {
		t.Fatal("collection counts should be skipped when filtering by addon")
	}
}

func TestPlanEmptyTablesQueueNothing(t *testing.T) {
	e := newEnv(t)
	res, err := e.planner(t, nil).Plan(context.Background(), stats.Options{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if res != (stats.Result{}) {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestFixupQueuesMissingRows(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	first := e.record(t, store.StatsUpdateCounts, 5, "2011-08-15")
	second := e.record(t, store.StatsUpdateCounts, 5, "2011-08-16")
	third := e.record(t, store.StatsUpdateCounts, 5, "2011-08-17")
	indexedOther := e.record(t, store.StatsDownloadCounts, 6, "2011-08-17")
	if _, err := e.store.IndexStatsRows(ctx, store.StatsUpdateCounts, []int64{first}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.store.IndexStatsRows(ctx, store.StatsDownloadCounts, []int64{indexedOther}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	res, err := e.planner(t, logger).Fixup(ctx)
	if err != nil {
		t.Fatalf("Fixup: %v", err)
	}
	if res.Tasks != 1 || res.Rows != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	payloads := e.payloads(t)
	if len(payloads) != 1 || payloads[0].IDs[0] != second || payloads[0].IDs[1] != third {
		t.Fatalf("unexpected payloads %+v", payloads)
	}
	if !strings.Contains(buf.String(), "Missing 2 rows for 5.") {
		t.Fatalf("expected fixup log line, got %s", buf.String())
	}
}

func TestIndexHandlerIndexesRows(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.record(t, store.StatsDownloadCounts, 9, "2011-08-15")
	if _, err := e.planner(t, nil).Plan(ctx, stats.Options{Addons: []int64{9}}); err != nil {
		t.Fatalf("Plan: %v", err)
	}
	task, err := e.queue.Claim(ctx, queue.KindIndexStats)
	if err != nil || task == nil {
		t.Fatalf("Claim: %v %v", task, err)
	}
	handler := stats.NewIndexHandler(e.store, nil)
	if err := handler.Execute(ctx, task); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	count, err := e.store.IndexedCount(ctx, store.StatsDownloadCounts, 9)
	if err != nil || count != 1 {
		t.Fatalf("IndexedCount: %d %v", count, err)
	}
	ids, _ := e.store.IndexedIDs(ctx, store.StatsDownloadCounts, 9, 10)
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("unexpected indexed ids %v", ids)
	}
}

func TestIndexHandlerRejectsUnknownKind(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if _, err := e.queue.Enqueue(ctx, queue.KindIndexStats, stats.IndexPayload{Kind: "ratings", IDs: []int64{1}}); err != nil {
		t.Fatal(err)
	}
	task, _ := e.queue.Claim(ctx, queue.KindIndexStats)
	err := stats.NewIndexHandler(e.store, nil).Execute(ctx, task)
	if !errors.Is(err, services.ErrValidation) || !services.Permanent(err) {
		t.Fatalf("expected permanent validation error, got %v", err)
	}
}

func TestParseOptions(t *testing.T) {
	ids, err := stats.ParseAddons("1865, 2848,1843")
	if err != nil || len(ids) != 3 || ids[1] != 2848 {
		t.Fatalf("ParseAddons: %v %v", ids, err)
	}
	if _, err := stats.ParseAddons("12,abc"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	tests := []struct {
		in       string
		from, to string
		wantErr  bool
	}{
		{in: "", from: "", to: ""},
		{in: "2011-08-15", from: "2011-08-15", to: "2011-08-15"},
		{in: "2011-08-15:2011-08-22", from: "2011-08-15", to: "2011-08-22"},
		{in: "2011-08-22:2011-08-15", wantErr: true},
		{in: "15/08/2011", wantErr: true},
	}
	for _, tt := range tests {
		from, to, err := stats.ParseDates(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDates(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil || from != tt.from || to != tt.to {
			t.Errorf("ParseDates(%q) = %q, %q, %v", tt.in, from, to, err)
		}
	}
}

func TestChunk(t *testing.T) {
	chunks := stats.Chunk([]int64{1, 2, 3, 4, 5}, 2)
	if len(chunks) != 3 || len(chunks[2]) != 1 || chunks[2][0] != 5 {
		t.Fatalf("unexpected chunks %v", chunks)
	}
	if got := stats.Chunk(nil, 50); len(got) != 0 {
		t.Fatalf("expected no chunks, got %v", got)
	}
}
