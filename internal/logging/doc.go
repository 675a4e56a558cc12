// Package logging assembles structured slog loggers and formatting helpers used
// across reframe.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// defines the standard field keys (source, output, attempt, claim_token), and
// prunes old per-run log files. A no-op logger is provided for tests and for
// wiring code that cannot fail.
package logging
