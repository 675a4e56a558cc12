package main

import (
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"reframe/internal/job"
	"reframe/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var ffmpegFor string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the current daemon log, or the ffmpeg log for one file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Logging.Dir, "reframe.log")
			if ffmpegFor != "" {
				source, err := filepath.Abs(ffmpegFor)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", ffmpegFor, err)
				}
				output := job.LedgerFromConfig(cfg, nil).OutputPath(source)
				path = filepath.Join(job.ToolLogDir(cfg), filepath.Base(output)+".ffmpeg.log")
			}

			out := cmd.OutOrStdout()
			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				if len(tail) == 0 && offset == 0 {
					fmt.Fprintf(out, "No log at %s\n", path)
				}
				return nil
			}

			signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			err = logs.Follow(signalCtx, path, logs.FollowOptions{Offset: offset}, func(line string) {
				fmt.Fprintln(out, line)
			})
			if errors.Is(err, signalCtx.Err()) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&ffmpegFor, "ffmpeg", "", "Show the ffmpeg log for this source file")
	return cmd
}
