package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateTasks(); err != nil {
		return err
	}
	if err := c.validateStats(); err != nil {
		return err
	}
	if err := c.validatePayments(); err != nil {
		return err
	}
	if err := c.validateUploads(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.RateLimit < 0 {
		return errors.New("server.rate_limit must be zero (disabled) or positive")
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst <= 0 {
		return errors.New("server.rate_burst must be positive when server.rate_limit is set")
	}
	return nil
}

func (c *Config) validateTasks() error {
	if c.Tasks.PollInterval <= 0 {
		return errors.New("tasks.poll_interval must be positive")
	}
	if c.Tasks.ErrorRetryInterval <= 0 {
		return errors.New("tasks.error_retry_interval must be positive")
	}
	if c.Tasks.HeartbeatInterval <= 0 {
		return errors.New("tasks.heartbeat_interval must be positive")
	}
	if c.Tasks.HeartbeatTimeout <= c.Tasks.HeartbeatInterval {
		return errors.New("tasks.heartbeat_timeout must be greater than tasks.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateStats() error {
	if c.Stats.Schedule != "" {
		if _, err := cron.ParseStandard(c.Stats.Schedule); err != nil {
			return fmt.Errorf("stats.schedule: %w", err)
		}
	}
	if c.Stats.FixupSchedule != "" {
		if _, err := cron.ParseStandard(c.Stats.FixupSchedule); err != nil {
			return fmt.Errorf("stats.fixup_schedule: %w", err)
		}
	}
	return nil
}

func (c *Config) validatePayments() error {
	if c.Payments.MaxContribution <= 0 {
		return errors.New("payments.max_contribution must be positive")
	}
	if c.Payments.FoundationCharityID <= 0 {
		return errors.New("payments.foundation_charity_id must be positive")
	}
	if c.PayPal.TimeoutSeconds <= 0 {
		return errors.New("paypal.timeout_seconds must be positive")
	}
	if !c.Payments.Enabled {
		return nil
	}
	if c.Payments.KeyFile == "" {
		return errors.New("payments.key_file must be set when payments.enabled is true (create one with 'mkt genkey')")
	}
	if strings.TrimSpace(c.PayPal.AppID) == "" {
		return errors.New("paypal.app_id must be set when payments.enabled is true")
	}
	return nil
}

func (c *Config) validateUploads() error {
	if c.Uploads.MaxSizeMiB <= 0 {
		return errors.New("uploads.max_size_mib must be positive")
	}
	if c.Uploads.MinFreeMiB < 0 {
		return errors.New("uploads.min_free_mib must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
