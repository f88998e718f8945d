package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeTasks()
	c.normalizeStats()
	if err := c.normalizePayments(); err != nil {
		return err
	}
	c.normalizeMail()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		c.Database.Path = filepath.Join(c.Paths.DataDir, "marketplace.db")
	}
	if c.Database.Path, err = expandPath(c.Database.Path); err != nil {
		return fmt.Errorf("database.path: %w", err)
	}
	if strings.TrimSpace(c.Database.TasksPath) == "" {
		c.Database.TasksPath = filepath.Join(c.Paths.DataDir, "tasks.db")
	}
	if c.Database.TasksPath, err = expandPath(c.Database.TasksPath); err != nil {
		return fmt.Errorf("database.tasks_path: %w", err)
	}
	if c.Uploads.Dir, err = expandPath(c.Uploads.Dir); err != nil {
		return fmt.Errorf("uploads.dir: %w", err)
	}
	if c.Uploads.IconDir, err = expandPath(c.Uploads.IconDir); err != nil {
		return fmt.Errorf("uploads.icon_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Auth.Issuer = strings.TrimSpace(c.Auth.Issuer)
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = defaultIssuer
	}
	if c.Auth.TokenTTLHours <= 0 {
		c.Auth.TokenTTLHours = defaultTokenTTLHours
	}
}

func (c *Config) normalizeTasks() {
	if c.Tasks.ChunkSize <= 0 {
		c.Tasks.ChunkSize = defaultChunkSize
	}
	if c.Tasks.MaxAttempts <= 0 {
		c.Tasks.MaxAttempts = defaultMaxAttempts
	}
}

func (c *Config) normalizeStats() {
	c.Stats.Schedule = strings.TrimSpace(c.Stats.Schedule)
	c.Stats.FixupSchedule = strings.TrimSpace(c.Stats.FixupSchedule)
	if c.Stats.StepDays <= 0 {
		c.Stats.StepDays = defaultStatsStepDays
	}
	if c.Stats.FixupWindow <= 0 {
		c.Stats.FixupWindow = defaultFixupWindow
	}
}

func (c *Config) normalizePayments() error {
	var err error
	if c.Payments.KeyFile, err = expandPath(strings.TrimSpace(c.Payments.KeyFile)); err != nil {
		return fmt.Errorf("payments.key_file: %w", err)
	}
	c.Payments.DefaultCurrency = strings.ToUpper(strings.TrimSpace(c.Payments.DefaultCurrency))
	if c.Payments.DefaultCurrency == "" {
		c.Payments.DefaultCurrency = defaultCurrency
	}
	c.PayPal.Endpoint = strings.TrimRight(strings.TrimSpace(c.PayPal.Endpoint), "/")
	if c.PayPal.Endpoint == "" {
		c.PayPal.Endpoint = defaultPayPalEndpoint
	}
	return nil
}

func (c *Config) normalizeMail() {
	c.Mail.SMTPAddr = strings.TrimSpace(c.Mail.SMTPAddr)
	c.Mail.From = strings.TrimSpace(c.Mail.From)
	if c.Mail.From == "" {
		c.Mail.From = defaultMailFrom
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
