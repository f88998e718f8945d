// Package config loads, normalizes, and validates marketplace configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and applies environment overrides for secrets such as
// MARKETPLACE_JWT_SECRET and the PayPal credentials. Database files resolve
// inside paths.data_dir unless set explicitly.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
