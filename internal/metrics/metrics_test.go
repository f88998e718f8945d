package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"marketplace/internal/queue"
)

func TestMiddlewareRecordsRoute(t *testing.T) {
	m := New()
	handler := m.Middleware(func(r *http.Request) string {
		if r.URL.Path == "/missing" {
			return ""
		}
		return "/api/v1/addons/{slug}"
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/api/v1/addons/a", "/api/v1/addons/b", "/missing"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/addons/{slug}", "200")); got != 2 {
		t.Fatalf("expected 2 matched requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("expected 1 unmatched request, got %v", got)
	}
	if got := testutil.ToFloat64(m.httpInFlight); got != 0 {
		t.Fatalf("expected in-flight gauge to settle at 0, got %v", got)
	}
}

func TestObserveTaskAndGateway(t *testing.T) {
	m := New()
	m.ObserveTask(queue.KindSendMail, "done", 10*time.Millisecond)
	m.ObserveTask(queue.KindSendMail, "done", 20*time.Millisecond)
	m.ObserveTask(queue.KindIndexStats, "retry", time.Millisecond)
	m.ObserveGateway("refund", time.Second, nil)
	m.ObserveGateway("refund", time.Second, errors.New("boom"))

	cases := []struct {
		name string
		got  float64
		want float64
	}{
		{"mail done", testutil.ToFloat64(m.tasks.WithLabelValues(string(queue.KindSendMail), "done")), 2},
		{"stats retry", testutil.ToFloat64(m.tasks.WithLabelValues(string(queue.KindIndexStats), "retry")), 1},
		{"refund ok", testutil.ToFloat64(m.gateway.WithLabelValues("refund", "ok")), 1},
		{"refund error", testutil.ToFloat64(m.gateway.WithLabelValues("refund", "error")), 1},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, tc.got, tc.want)
		}
	}
}

type fakeQueue struct {
	counts map[queue.Status]int
	err    error
}

func (f fakeQueue) Stats(context.Context) (map[queue.Status]int, error) { return f.counts, f.err }

func TestQueueCollector(t *testing.T) {
	m := New()
	if err := m.RegisterQueue(fakeQueue{counts: map[queue.Status]int{queue.StatusPending: 3, queue.StatusFailed: 1}}); err != nil {
		t.Fatalf("register queue: %v", err)
	}
	expected := `
# HELP marketplace_tasks_queued Tasks in the queue by status.
# TYPE marketplace_tasks_queued gauge
marketplace_tasks_queued{status="done"} 0
marketplace_tasks_queued{status="failed"} 1
marketplace_tasks_queued{status="pending"} 3
marketplace_tasks_queued{status="running"} 0
`
	if err := testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "marketplace_tasks_queued"); err != nil {
		t.Fatal(err)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ObserveTask(queue.KindIndexStats, "done", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	for _, want := range []string{"marketplace_tasks_executions_total", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in exposition output", want)
		}
	}
}
