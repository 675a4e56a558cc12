package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reframe/internal/config"
	"reframe/internal/history"
	"reframe/internal/job"
	"reframe/internal/layout"
	"reframe/internal/notifications"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <file>...",
		Short: "Convert files once through the same claim and retry rules as the daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return ctx.withHistory(func(cfg *config.Config, store *history.Store) error {
				runner, err := job.NewRunnerFromConfig(cfg, store, notifications.NewService(cfg), ctx.cliLogger())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				failed := 0
				for _, arg := range args {
					source, err := filepath.Abs(arg)
					if err != nil {
						return fmt.Errorf("resolve %s: %w", arg, err)
					}
					if !layout.IsSupported(source, cfg.Watch.Extensions) {
						fmt.Fprintln(out, renderStatusLine(filepath.Base(source), statusWarn, "unsupported extension", colorize))
						continue
					}
					outcome := runner.Handle(signalCtx, source)
					kind, message := describeOutcome(outcome)
					if kind == statusError {
						failed++
					}
					fmt.Fprintln(out, renderStatusLine(filepath.Base(source), kind, message, colorize))
					if signalCtx.Err() != nil {
						return signalCtx.Err()
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d conversions failed", failed, len(args))
				}
				return nil
			})
		},
	}
}

func describeOutcome(outcome job.Outcome) (statusKind, string) {
	switch {
	case outcome.Converted():
		return statusOK, fmt.Sprintf("%s (%d attempt(s), %s)", outcome.Output, outcome.Attempts, outcome.Duration.Round(time.Second))
	case outcome.NoOp():
		return statusInfo, humanize(outcome.Reason)
	default:
		message := humanize(outcome.Reason)
		if outcome.Err != nil {
			message += ": " + truncate(outcome.Err.Error(), 120)
		}
		return statusError, message
	}
}
