package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"reframe/internal/notifications"
	"reframe/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var notify bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check directories, ffmpeg, and the logo before running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if ctx.configPath != "" {
				fmt.Fprintln(out, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			failures := preflight.Failures(results)

			if notify {
				if cfg.Notifications.NtfyTopic == "" {
					fmt.Fprintln(out, renderStatusLine("Notifications", statusWarn, "ntfy topic not configured", colorize))
				} else if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
					fmt.Fprintln(out, renderStatusLine("Notifications", statusError, err.Error(), colorize))
					failures = errors.Join(failures, err)
				} else {
					fmt.Fprintln(out, renderStatusLine("Notifications", statusOK, "test notification sent", colorize))
				}
			}

			if failures != nil {
				return fmt.Errorf("checks failed: %w", failures)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&notify, "notify", false, "Send a test notification")
	return cmd
}
