package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"marketplace/internal/api"
	"marketplace/internal/config"
	"marketplace/internal/devhub"
	"marketplace/internal/logging"
	"marketplace/internal/metrics"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
}

func newAPIServer(cfg *config.Config, d *Daemon, hub *devhub.Service, m *metrics.Metrics, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Server.Bind)
	if bind == "" {
		return nil
	}
	logger = logging.NewComponentLogger(logger, "api-server")

	opts := []api.Option{
		api.WithTasks(d.queue),
		api.WithStatus(d.apiStatus),
		api.WithLogger(logger),
	}
	if m != nil {
		opts = append(opts, api.WithMetrics(m))
	}
	return &apiServer{
		bind:   bind,
		logger: logger,
		server: &http.Server{
			Handler:           api.NewServer(cfg, hub, opts...),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.shutdown()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.shutdown()
	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
}

func (s *apiServer) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// apiStatus converts the daemon status to its wire form.
func (d *Daemon) apiStatus(ctx context.Context) api.DaemonStatus {
	status := d.Status(ctx)
	schedules := make([]api.Schedule, 0, len(status.Schedules))
	for _, job := range status.Schedules {
		entry := api.Schedule{Name: job.Name, Spec: job.Spec}
		if !job.Next.IsZero() {
			entry.Next = job.Next.UTC().Format(time.RFC3339)
		}
		schedules = append(schedules, entry)
	}
	return api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		TasksDBPath:  status.TasksDBPath,
		LockFilePath: status.LockFilePath,
		Schedules:    schedules,
		Worker:       api.FromStatusSummary(status.Worker),
	}
}
