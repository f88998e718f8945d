package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"marketplace/internal/config"
	"marketplace/internal/daemon"
	"marketplace/internal/devhub"
	"marketplace/internal/logging"
	"marketplace/internal/metrics"
	"marketplace/internal/notifications"
	"marketplace/internal/paypal"
	"marketplace/internal/preflight"
	"marketplace/internal/queue"
	"marketplace/internal/secrets"
	"marketplace/internal/stats"
	"marketplace/internal/store"
	"marketplace/internal/worker"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the marketplace daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logPreflight(signalCtx, logger, cfg)
	pidPath := filepath.Join(cfg.Paths.DataDir, "marketd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := Build(cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("marketplace daemon shutting down")
	return nil
}

// Build opens both databases and wires every long-lived service into a
// daemon that has not been started yet.
func Build(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	q, err := queue.Open(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open task queue: %w", err)
	}
	fail := func(err error) (*daemon.Daemon, error) {
		q.Close()
		st.Close()
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.Server.MetricsEnabled {
		m = metrics.New()
	}
	notifier := notifications.NewService(cfg)

	hubOpts := []devhub.Option{
		devhub.WithMailQueue(q),
		devhub.WithNotifier(notifier),
		devhub.WithLogger(logger),
	}
	if cfg.Payments.Enabled {
		client, sealer, err := paymentDeps(cfg, m)
		if err != nil {
			return fail(err)
		}
		hubOpts = append(hubOpts, devhub.WithPayPal(client), devhub.WithSealer(sealer))
	}
	hub := devhub.NewService(cfg, st, hubOpts...)

	workerOpts := []worker.Option{
		worker.WithFailureNotifier(notifications.TaskFailureNotifier{Service: notifier, Logger: logger}),
	}
	if m != nil {
		workerOpts = append(workerOpts, worker.WithObserver(m))
	}
	mgr := worker.NewManager(cfg, q, logger, workerOpts...)
	if err := mgr.Register("stats", queue.KindIndexStats, stats.NewIndexHandler(st, logger)); err != nil {
		return fail(err)
	}
	if err := mgr.Register("mail", queue.KindSendMail, notifications.NewMailHandler(notifications.NewMailer(cfg), logger)); err != nil {
		return fail(err)
	}

	d, err := daemon.New(cfg, daemon.Deps{
		Store:   st,
		Queue:   q,
		Worker:  mgr,
		Planner: stats.NewPlanner(cfg, st, q, logger, stats.WithNotifier(notifier)),
		Hub:     hub,
		Metrics: m,
	}, logger)
	if err != nil {
		return fail(fmt.Errorf("create daemon: %w", err))
	}
	return d, nil
}

func paymentDeps(cfg *config.Config, m *metrics.Metrics) (*paypal.HTTPClient, *secrets.Sealer, error) {
	var ppOpts []paypal.Option
	if m != nil {
		ppOpts = append(ppOpts, paypal.WithObserver(m.ObserveGateway))
	}
	client, err := paypal.New(cfg, ppOpts...)
	if err != nil {
		return nil, nil, err
	}
	key, err := secrets.LoadKey(cfg.Payments.KeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("payments enabled: %w", err)
	}
	sealer, err := secrets.NewSealer(key)
	if err != nil {
		return nil, nil, err
	}
	return client, sealer, nil
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, r := range preflight.RunAll(ctx, cfg) {
		if r.Passed {
			logger.Debug("preflight check passed", logging.String("check", r.Name), logging.String("detail", r.Detail))
			continue
		}
		logger.Warn("preflight check failed",
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
		)
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
