package testsupport

import (
	"path/filepath"
	"testing"

	"marketplace/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Database.Path = filepath.Join(base, "data", "marketplace.db")
	cfgVal.Database.TasksPath = filepath.Join(base, "data", "tasks.db")
	cfgVal.Uploads.Dir = filepath.Join(base, "uploads")
	cfgVal.Uploads.IconDir = filepath.Join(base, "icons")
	cfgVal.Payments.KeyFile = filepath.Join(base, "encryption.key")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Auth.JWTSecret = "test-secret"
	cfgVal.Stats.Schedule = ""
	cfgVal.Tasks.PollInterval = 1
	cfgVal.Tasks.ErrorRetryInterval = 1
	cfgVal.Tasks.HeartbeatInterval = 1
	cfgVal.Tasks.HeartbeatTimeout = 5

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithRestrictedWebapps makes new web apps wait for approval.
func WithRestrictedWebapps() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Webapps.Restricted = true
	}
}

// WithPayPalEndpoint points the PayPal client at a test server.
func WithPayPalEndpoint(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.PayPal.Endpoint = url
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
