package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"marketplace/internal/config"
)

const userAgent = "Marketplace-Go/0.1.0"

// Event identifies an operator notification.
type Event string

const (
	EventTaskFailed    Event = "task_failed"
	EventStatsIndexed  Event = "stats_indexed"
	EventAppSubmitted  Event = "app_submitted"
	EventRefundRequest Event = "refund_processed"
	EventTest          Event = "test"
)

// Payload carries event details; keys depend on the event.
type Payload map[string]any

func (p Payload) str(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Service publishes operator events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	return &ntfyService{endpoint: topic, client: &http.Client{Timeout: requestTimeout(cfg)}}
}

func requestTimeout(cfg *config.Config) time.Duration {
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return timeout
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, p Payload) error {
	data, ok := format(event, p)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func format(event Event, p Payload) (payload, bool) {
	switch event {
	case EventTaskFailed:
		return payload{
			title:    "Marketplace - Task Failed",
			message:  fmt.Sprintf("Task #%s (%s) failed: %s", p.str("id"), p.str("kind"), p.str("error")),
			tags:     []string{"marketplace", "task", "failed"},
			priority: "high",
		}, true
	case EventStatsIndexed:
		return payload{
			title:   "Marketplace - Stats Queued",
			message: fmt.Sprintf("Queued %s stats tasks for %s rows", p.str("tasks"), p.str("rows")),
			tags:    []string{"marketplace", "stats"},
		}, true
	case EventAppSubmitted:
		return payload{
			title:   "Marketplace - App Submitted",
			message: fmt.Sprintf("%s submitted for review (%s)", p.str("name"), p.str("status")),
			tags:    []string{"marketplace", "submit"},
		}, true
	case EventRefundRequest:
		return payload{
			title:   "Marketplace - Refund " + p.str("status"),
			message: fmt.Sprintf("Refund %s for %s (transaction %s)", p.str("status"), p.str("addon"), p.str("transaction")),
			tags:    []string{"marketplace", "refund"},
		}, true
	case EventTest:
		return payload{
			title:    "Marketplace - Test",
			message:  "Notification system test",
			tags:     []string{"marketplace", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	return postNtfy(ctx, n.client, n.endpoint, data)
}

func postNtfy(ctx context.Context, client *http.Client, endpoint string, data payload) error {
	if client == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
