package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reframe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The logo check only runs when the overlay is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Input directory", cfg.Paths.InputDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if cfg.Logo.Enabled {
		results = append(results, CheckLogo(cfg.LogoPath()))
	}
	for _, status := range CheckSystemDeps(ctx, cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
		if result.Passed && result.Detail == "" {
			result.Detail = status.Command
		}
		results = append(results, result)
	}
	return results
}

// Failures joins the failed results into one error, or returns nil.
func Failures(results []Result) error {
	var errs []error
	for _, r := range results {
		if !r.Passed {
			errs = append(errs, fmt.Errorf("%s: %s", r.Name, strings.TrimSpace(r.Detail)))
		}
	}
	return errors.Join(errs...)
}
