package preflight

import (
	"context"

	"marketplace/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Payment checks only run when payments are enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Upload directory", cfg.Uploads.Dir),
		CheckDirectoryAccess("Icon directory", cfg.Uploads.IconDir),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	results = append(results, CheckFreeSpace("Upload volume", cfg.Uploads.Dir, cfg.Uploads.MinFreeMiB))

	if cfg.Payments.Enabled {
		results = append(results,
			CheckKeyFile("Payment key", cfg.Payments.KeyFile),
			CheckPayPal(ctx, cfg.PayPal.Endpoint),
		)
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
