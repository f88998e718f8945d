package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains data and log directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Server contains HTTP API settings.
type Server struct {
	Bind           string  `toml:"bind"`
	RateLimit      float64 `toml:"rate_limit"`
	RateBurst      int     `toml:"rate_burst"`
	MetricsEnabled bool    `toml:"metrics_enabled"`
}

// Auth contains bearer token settings.
type Auth struct {
	JWTSecret     string `toml:"jwt_secret"`
	Issuer        string `toml:"issuer"`
	TokenTTLHours int    `toml:"token_ttl_hours"`
}

// Database contains SQLite file locations. Empty values resolve inside
// paths.data_dir.
type Database struct {
	Path      string `toml:"path"`
	TasksPath string `toml:"tasks_path"`
}

// Tasks contains worker timing and batching.
type Tasks struct {
	PollInterval       int `toml:"poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	MaxAttempts        int `toml:"max_attempts"`
	ChunkSize          int `toml:"chunk_size"`
}

// Stats contains stats indexing schedules.
type Stats struct {
	Schedule      string `toml:"schedule"`
	FixupSchedule string `toml:"fixup_schedule"`
	StepDays      int    `toml:"step_days"`
	FixupWindow   int    `toml:"fixup_window"`
}

// Payments contains contribution and in-app payment settings.
type Payments struct {
	Enabled             bool   `toml:"enabled"`
	MaxContribution     int    `toml:"max_contribution"`
	FoundationCharityID int64  `toml:"foundation_charity_id"`
	KeyFile             string `toml:"key_file"`
	DefaultCurrency     string `toml:"default_currency"`
}

// PayPal contains gateway credentials.
type PayPal struct {
	Endpoint       string `toml:"endpoint"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	Signature      string `toml:"signature"`
	AppID          string `toml:"app_id"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Uploads contains package and icon storage settings.
type Uploads struct {
	Dir        string `toml:"dir"`
	IconDir    string `toml:"icon_dir"`
	MaxSizeMiB int    `toml:"max_size_mib"`
	MinFreeMiB int    `toml:"min_free_mib"`
}

// Webapps contains web app submission policy.
type Webapps struct {
	Restricted            bool `toml:"restricted"`
	AllowDuplicateDomains bool `toml:"allow_duplicate_domains"`
	FetchTimeoutSeconds   int  `toml:"fetch_timeout_seconds"`
}

// Notifications contains ntfy push settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Mail contains SMTP delivery settings.
type Mail struct {
	SMTPAddr string `toml:"smtp_addr"`
	From     string `toml:"from"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the marketplace.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Server: API bind address, rate limiting, metrics
//   - Auth: bearer token signing
//   - Database: marketplace and task database files
//   - Tasks: worker polling, heartbeats, batch size
//   - Stats: nightly indexing schedules
//   - Payments/PayPal: contributions, refunds, gateway credentials
//   - Uploads/Webapps: submission storage and policy
//   - Notifications/Mail: developer and buyer mail delivery
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Auth          Auth          `toml:"auth"`
	Database      Database      `toml:"database"`
	Tasks         Tasks         `toml:"tasks"`
	Stats         Stats         `toml:"stats"`
	Payments      Payments      `toml:"payments"`
	PayPal        PayPal        `toml:"paypal"`
	Uploads       Uploads       `toml:"uploads"`
	Webapps       Webapps       `toml:"webapps"`
	Notifications Notifications `toml:"notifications"`
	Mail          Mail          `toml:"mail"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("marketplace.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the data, upload, icon, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Uploads.Dir, c.Uploads.IconDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "marketd.lock")
}

// PollInterval returns the worker poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Tasks.PollInterval) * time.Second
}

// ErrorRetryInterval returns the pause after a failed claim.
func (c *Config) ErrorRetryInterval() time.Duration {
	return time.Duration(c.Tasks.ErrorRetryInterval) * time.Second
}

// HeartbeatInterval returns how often running tasks refresh their heartbeat.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Tasks.HeartbeatInterval) * time.Second
}

// HeartbeatTimeout returns how long a running task may go silent before it is reclaimed.
func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.Tasks.HeartbeatTimeout) * time.Second
}

// PayPalTimeout returns the gateway request timeout.
func (c *Config) PayPalTimeout() time.Duration {
	return time.Duration(c.PayPal.TimeoutSeconds) * time.Second
}

// TokenTTL returns the lifetime of minted bearer tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
