package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marketplace/internal/config"
	"marketplace/internal/notifications"
	"marketplace/internal/queue"
	"marketplace/internal/services"
	"marketplace/internal/testsupport"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTaskFailed, notifications.Payload{"id": 1}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type capture struct {
	title    string
	tags     string
	priority string
	body     string
	calls    int
}

func newNtfyServer(t *testing.T, c *capture) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		c.calls++
		c.title = r.Header.Get("Title")
		c.tags = r.Header.Get("Tags")
		c.priority = r.Header.Get("Priority")
		body, _ := io.ReadAll(r.Body)
		c.body = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:           "task failed",
			event:          notifications.EventTaskFailed,
			payload:        notifications.Payload{"id": "7", "kind": "send_mail", "error": "smtp down"},
			expectTitle:    "Marketplace - Task Failed",
			expectMessage:  "Task #7 (send_mail) failed: smtp down",
			expectTags:     "marketplace,task,failed",
			expectPriority: "high",
		},
		{
			name:          "stats indexed",
			event:         notifications.EventStatsIndexed,
			payload:       notifications.Payload{"tasks": 3, "rows": 120},
			expectTitle:   "Marketplace - Stats Queued",
			expectMessage: "Queued 3 stats tasks for 120 rows",
			expectTags:    "marketplace,stats",
		},
		{
			name:          "app submitted",
			event:         notifications.EventAppSubmitted,
			payload:       notifications.Payload{"name": "Weather", "status": "Pending approval"},
			expectTitle:   "Marketplace - App Submitted",
			expectMessage: "Weather submitted for review (Pending approval)",
			expectTags:    "marketplace,submit",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured capture
			server := newNtfyServer(t, &captured)

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceIgnoresUnknownEvents(t *testing.T) {
	var captured capture
	server := newNtfyServer(t, &captured)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.Event("disc_detected"), nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if captured.calls != 0 {
		t.Fatalf("expected no ntfy calls, got %d", captured.calls)
	}
}

func TestNewMailerSelection(t *testing.T) {
	cfg := config.Default()
	if got := notifications.NewMailer(&cfg).Name(); got != "noop" {
		t.Fatalf("expected noop mailer, got %s", got)
	}
	cfg.Notifications.NtfyTopic = "https://ntfy.example/topic"
	if got := notifications.NewMailer(&cfg).Name(); got != "ntfy" {
		t.Fatalf("expected ntfy mailer, got %s", got)
	}
	cfg.Mail.SMTPAddr = "localhost:25"
	if got := notifications.NewMailer(&cfg).Name(); got != "smtp" {
		t.Fatalf("expected smtp mailer, got %s", got)
	}
}

func TestMessageValidate(t *testing.T) {
	err := notifications.Message{Subject: "hi"}.Validate()
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	err = notifications.Message{To: []string{"nobody"}, Subject: "hi"}.Validate()
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for bad recipient, got %v", err)
	}
}

func TestRefundTemplates(t *testing.T) {
	approved := notifications.RefundApproved("buyer@example.com", "Weather", "$0.99", "txn-1")
	if !strings.Contains(approved.Subject, "approved") || !strings.Contains(approved.Subject, "Weather") {
		t.Fatalf("unexpected approved subject %q", approved.Subject)
	}
	if !strings.Contains(approved.Body, "$0.99") || !strings.Contains(approved.Body, "txn-1") {
		t.Fatalf("unexpected approved body %q", approved.Body)
	}
	declined := notifications.RefundDeclined("buyer@example.com", "Weather", "", "txn-2")
	if !strings.Contains(declined.Subject, "declined") {
		t.Fatalf("unexpected declined subject %q", declined.Subject)
	}
	if !strings.Contains(declined.Body, "none given") {
		t.Fatalf("expected default reason in body %q", declined.Body)
	}
}

func TestMailHandlerDeliversQueuedMessage(t *testing.T) {
	var captured capture
	server := newNtfyServer(t, &captured)

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	store := testsupport.MustOpenQueue(t, cfg)
	ctx := context.Background()

	msg := notifications.RefundApproved("buyer@example.com", "Weather", "$1.00", "txn-9")
	if err := notifications.EnqueueMail(ctx, store, msg); err != nil {
		t.Fatalf("EnqueueMail: %v", err)
	}
	task, err := store.Claim(ctx, queue.KindSendMail)
	if err != nil || task == nil {
		t.Fatalf("Claim: %v %v", task, err)
	}

	handler := notifications.NewMailHandler(notifications.NewMailer(cfg), nil)
	if err := handler.Execute(ctx, task); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if captured.calls != 1 || captured.title != msg.Subject {
		t.Fatalf("unexpected delivery: %+v", captured)
	}
	if !strings.HasPrefix(captured.body, "To: buyer@example.com") {
		t.Fatalf("unexpected body %q", captured.body)
	}
	if health := handler.HealthCheck(ctx); !health.Ready {
		t.Fatalf("expected ready mail health, got %+v", health)
	}
}

func TestEnqueueMailRejectsInvalidMessage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	if err := notifications.EnqueueMail(context.Background(), store, notifications.Message{}); err == nil {
		t.Fatal("expected validation error")
	}
}
