package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"marketplace/internal/config"
	"marketplace/internal/devhub"
	"marketplace/internal/logging"
	"marketplace/internal/metrics"
	"marketplace/internal/services"
)

// Prefix is the mount point of every JSON endpoint.
const Prefix = "/api/v1"

// Server routes HTTP requests to developer hub workflows.
type Server struct {
	cfg     *config.Config
	hub     *devhub.Service
	tasks   *TaskService
	metrics *metrics.Metrics
	status  func(ctx context.Context) DaemonStatus
	logger  *slog.Logger
	auth    *authenticator
	limiter *rateLimiter
	router  *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics instruments requests and exposes /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTasks enables the admin task endpoints.
func WithTasks(reader TaskReader) Option {
	return func(s *Server) { s.tasks = NewTaskService(reader) }
}

// WithStatus sets the provider behind GET /api/v1/status.
func WithStatus(fn func(ctx context.Context) DaemonStatus) Option {
	return func(s *Server) { s.status = fn }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer builds the router.
func NewServer(cfg *config.Config, hub *devhub.Service, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		hub:    hub,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "api")
	s.auth = newAuthenticator(cfg, hub.Store(), s.logger)
	s.limiter = newRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	root := mux.NewRouter()
	root.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	})
	root.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
	})
	if s.metrics != nil && s.cfg.Server.MetricsEnabled {
		root.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	r := root.PathPrefix(Prefix).Subrouter()
	r.Use(requestID)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware(routeTemplate))
	}
	r.Use(s.auth.middleware, s.limiter.middleware)

	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/search/apps", s.handleSearchApps).Methods(http.MethodGet)
	r.HandleFunc("/search/suggestions", s.handleSuggestions).Methods(http.MethodGet)
	r.HandleFunc("/users/me", s.handleCurrentUser).Methods(http.MethodGet)

	d := r.PathPrefix("/developers").Subrouter()
	d.HandleFunc("/addons", s.handleDashboard).Methods(http.MethodGet)
	d.HandleFunc("/licenses", s.handleLicenses).Methods(http.MethodGet)
	d.HandleFunc("/paypal/check", s.handleCheckPayPal).Methods(http.MethodGet)
	d.HandleFunc("/tasks", s.handleTasks).Methods(http.MethodGet)
	d.HandleFunc("/tasks/{id:[0-9]+}", s.handleTask).Methods(http.MethodGet)

	d.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	d.HandleFunc("/upload/manifest", s.handleUploadManifest).Methods(http.MethodPost)
	d.HandleFunc("/upload/icon", s.handleUploadIcon).Methods(http.MethodPost)
	d.HandleFunc("/upload/{uuid}", s.handleUploadDetail).Methods(http.MethodGet)

	d.HandleFunc("/submit/1", s.handleAgreement).Methods(http.MethodGet, http.MethodPost)
	d.HandleFunc("/submit/2", s.handleCreate(false)).Methods(http.MethodPost)
	d.HandleFunc("/submit/app/2", s.handleCreate(true)).Methods(http.MethodPost)
	d.HandleFunc("/submit/{step:[3-7]}/{slug}", s.handleStepView(false)).Methods(http.MethodGet)
	d.HandleFunc("/submit/{step:[3-6]}/{slug}", s.handleStep(false)).Methods(http.MethodPost)
	d.HandleFunc("/submit/app/{step:[3-7]}/{slug}", s.handleStepView(true)).Methods(http.MethodGet)
	d.HandleFunc("/submit/app/{step:[3-6]}/{slug}", s.handleStep(true)).Methods(http.MethodPost)

	a := d.PathPrefix("/{kind:addon|app}/{slug}").Subrouter()
	a.HandleFunc("", s.handleAddon).Methods(http.MethodGet)
	a.HandleFunc("/edit", s.handleAddon).Methods(http.MethodGet)
	a.HandleFunc("/delete", s.handleDelete).Methods(http.MethodPost)
	a.HandleFunc("/submit/resume", s.handleResume).Methods(http.MethodGet)
	a.HandleFunc("/submit/bump", s.handleBump).Methods(http.MethodPost)
	a.HandleFunc("/versions", s.handleVersions).Methods(http.MethodGet)
	a.HandleFunc("/versions", s.handleAddVersion).Methods(http.MethodPost)
	a.HandleFunc("/versions/stats", s.handleVersionStats).Methods(http.MethodGet)
	a.HandleFunc("/request-review/{status:[0-9]+}", s.handleRequestReview).Methods(http.MethodPost)
	a.HandleFunc("/payments", s.handlePayments).Methods(http.MethodGet)
	a.HandleFunc("/payments", s.handleSetContributions).Methods(http.MethodPost)
	a.HandleFunc("/payments/disable", s.handleDisableContributions).Methods(http.MethodPost)
	a.HandleFunc("/profile", s.handleProfile).Methods(http.MethodPost)
	a.HandleFunc("/profile/remove", s.handleRemoveProfile).Methods(http.MethodPost)
	a.HandleFunc("/premium", s.handlePremium).Methods(http.MethodGet)
	a.HandleFunc("/premium", s.handleSetPremium).Methods(http.MethodPost)
	a.HandleFunc("/premium/permission", s.handleRefundPermission).Methods(http.MethodPost)
	a.HandleFunc("/premium/finish", s.handleFinishPremium).Methods(http.MethodPost)
	a.HandleFunc("/refunds", s.handleRefunds).Methods(http.MethodGet)
	a.HandleFunc("/refunds/{txn}", s.handleRefundContext).Methods(http.MethodGet)
	a.HandleFunc("/refunds/{txn}/issue", s.handleIssueRefund).Methods(http.MethodPost)
	a.HandleFunc("/refunds/{txn}/decline", s.handleDeclineRefund).Methods(http.MethodPost)
	return root
}

func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return ""
	}
	return tpl
}

// requestID stamps each request with a correlation id, honouring a
// client-supplied X-Request-ID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, s.logger, err)
}
