package devhub

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/logging"
	"marketplace/internal/notifications"
	"marketplace/internal/paypal"
	"marketplace/internal/secrets"
	"marketplace/internal/store"
)

// Service runs developer hub workflows against the marketplace store.
type Service struct {
	cfg      *config.Config
	store    *store.Store
	paypal   paypal.Client
	mail     notifications.Enqueuer
	notifier notifications.Service
	sealer   *secrets.Sealer
	http     *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPayPal sets the gateway used for account checks, permissions and refunds.
func WithPayPal(client paypal.Client) Option {
	return func(s *Service) { s.paypal = client }
}

// WithMailQueue sets where buyer mail is queued.
func WithMailQueue(q notifications.Enqueuer) Option {
	return func(s *Service) { s.mail = q }
}

// WithNotifier sets the operator event feed.
func WithNotifier(n notifications.Service) Option {
	return func(s *Service) { s.notifier = n }
}

// WithSealer sets the sealer protecting stored PayPal tokens.
func WithSealer(sealer *secrets.Sealer) Option {
	return func(s *Service) { s.sealer = sealer }
}

// WithHTTPClient overrides the client used to fetch remote manifests.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.http = client
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source for nomination dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds a developer hub service.
func NewService(cfg *config.Config, st *store.Store, opts ...Option) *Service {
	timeout := time.Duration(cfg.Webapps.FetchTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &Service{
		cfg:    cfg,
		store:  st,
		http:   &http.Client{Timeout: timeout},
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "devhub")
	return s
}

// Store exposes the underlying store for read paths owned by other layers.
func (s *Service) Store() *store.Store { return s.store }

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, s.logger)
}

func (s *Service) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(s.log(ctx), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}

func (s *Service) queueMail(ctx context.Context, msg notifications.Message) {
	if s.mail == nil {
		s.log(ctx).Debug("mail queue not configured; message dropped", logging.String("subject", msg.Subject))
		return
	}
	if err := notifications.EnqueueMail(ctx, s.mail, msg); err != nil {
		logging.ErrorWithContext(s.log(ctx), "queue mail failed", "mail_queue_failed",
			logging.String("subject", msg.Subject),
			logging.Error(err),
		)
	}
}

func (s *Service) logActivity(ctx context.Context, action store.Action, a *store.Addon, user *store.User, details map[string]any) error {
	var addonID, userID int64
	if a != nil {
		addonID = a.ID
	}
	if user != nil {
		userID = user.ID
	}
	return s.store.LogActivity(ctx, action, addonID, userID, details)
}
