package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// secretEnv holds credentials that are normally supplied by the environment
// rather than written into the TOML file.
type secretEnv struct {
	JWTSecret       string `env:"MARKETPLACE_JWT_SECRET"`
	PayPalUsername  string `env:"MARKETPLACE_PAYPAL_USERNAME"`
	PayPalPassword  string `env:"MARKETPLACE_PAYPAL_PASSWORD"`
	PayPalSignature string `env:"MARKETPLACE_PAYPAL_SIGNATURE"`
	PayPalAppID     string `env:"MARKETPLACE_PAYPAL_APP_ID"`
	NtfyTopic       string `env:"MARKETPLACE_NTFY_TOPIC"`
	SMTPPassword    string `env:"MARKETPLACE_SMTP_PASSWORD"`
	LogLevel        string `env:"MARKETPLACE_LOG_LEVEL"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// applyEnv overrides file values with any non-empty environment values.
func (c *Config) applyEnv() error {
	var secrets secretEnv
	if err := ParseEnv(&secrets); err != nil {
		return err
	}
	override(&c.Auth.JWTSecret, secrets.JWTSecret)
	override(&c.PayPal.Username, secrets.PayPalUsername)
	override(&c.PayPal.Password, secrets.PayPalPassword)
	override(&c.PayPal.Signature, secrets.PayPalSignature)
	override(&c.PayPal.AppID, secrets.PayPalAppID)
	override(&c.Notifications.NtfyTopic, secrets.NtfyTopic)
	override(&c.Mail.Password, secrets.SMTPPassword)
	override(&c.Logging.Level, secrets.LogLevel)
	return nil
}

func override(dst *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*dst = trimmed
	}
}
