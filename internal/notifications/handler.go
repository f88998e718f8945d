package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"marketplace/internal/logging"
	"marketplace/internal/queue"
	"marketplace/internal/services"
	"marketplace/internal/worker"
)

// Enqueuer accepts background tasks.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind queue.Kind, payload any) (*queue.Task, error)
}

// EnqueueMail queues msg for delivery by MailHandler.
func EnqueueMail(ctx context.Context, q Enqueuer, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if _, err := q.Enqueue(ctx, queue.KindSendMail, msg); err != nil {
		return fmt.Errorf("queue mail: %w", err)
	}
	return nil
}

// MailHandler delivers send_mail tasks.
type MailHandler struct {
	mailer Mailer
	logger *slog.Logger
}

// NewMailHandler wraps mailer as a task handler.
func NewMailHandler(mailer Mailer, logger *slog.Logger) *MailHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &MailHandler{mailer: mailer, logger: logger}
}

// Execute decodes and sends one message.
func (h *MailHandler) Execute(ctx context.Context, task *queue.Task) error {
	var msg Message
	if err := task.Decode(&msg); err != nil {
		return services.Wrap(services.ErrValidation, "mail", "decode", "malformed payload", err)
	}
	if err := h.mailer.Send(ctx, msg); err != nil {
		return err
	}
	logging.WithContext(ctx, h.logger).Info("mail delivered",
		logging.String("mailer", h.mailer.Name()),
		logging.Int("recipients", len(msg.To)),
		logging.String("subject", msg.Subject),
	)
	return nil
}

// HealthCheck reports which transport delivers mail.
func (h *MailHandler) HealthCheck(context.Context) worker.Health {
	if h.mailer.Name() == "noop" {
		return worker.Unhealthy("mail", "no mail transport configured; messages are discarded")
	}
	return worker.Healthy("mail (" + h.mailer.Name() + ")")
}

// TaskFailureNotifier forwards permanently failed tasks to the operator feed.
type TaskFailureNotifier struct {
	Service Service
	Logger  *slog.Logger
}

// TaskFailed publishes EventTaskFailed.
func (n TaskFailureNotifier) TaskFailed(ctx context.Context, task *queue.Task, cause error) {
	if n.Service == nil {
		return
	}
	payload := Payload{"id": strconv.FormatInt(task.ID, 10), "kind": string(task.Kind), "error": cause.Error()}
	if err := n.Service.Publish(ctx, EventTaskFailed, payload); err != nil && n.Logger != nil {
		n.Logger.Warn("task failure notification failed", logging.Error(err))
	}
}
