package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"reframe/internal/config"
	"reframe/internal/history"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <file>...",
		Short: "Clear the poisoned state so the next event or convert retries the file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(_ *config.Config, store *history.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, arg := range args {
					source, err := filepath.Abs(arg)
					if err != nil {
						return fmt.Errorf("resolve %s: %w", arg, err)
					}
					rec, err := store.Get(cmd.Context(), source)
					if err != nil {
						return err
					}
					if rec == nil {
						fmt.Fprintln(out, renderStatusLine(filepath.Base(source), statusWarn, "not in history", colorize))
						continue
					}
					ok, err := store.Reset(cmd.Context(), source)
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(out, renderStatusLine(filepath.Base(source), statusWarn, "conversion in progress", colorize))
						continue
					}
					fmt.Fprintln(out, renderStatusLine(filepath.Base(source), statusOK,
						fmt.Sprintf("reset from %s", humanize(string(rec.Status))), colorize))
				}
				return nil
			})
		},
	}
}
