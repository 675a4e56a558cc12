package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"reframe/internal/claim"
	"reframe/internal/job"
)

func newMarkersCommand(ctx *commandContext) *cobra.Command {
	var clean bool

	cmd := &cobra.Command{
		Use:   "markers",
		Short: "List claim markers in the input directory",
		Long: "List claim markers in the input directory. A marker is stale when its owner process is gone " +
			"or it is older than claim.stale_after; --clean removes stale markers and leaves live ones alone.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ledger := job.LedgerFromConfig(cfg, ctx.cliLogger())
			out := cmd.OutOrStdout()

			if clean {
				removed, err := ledger.Sweep(cfg.Paths.InputDir)
				for _, status := range removed {
					fmt.Fprintln(out, renderStatusLine(filepath.Base(status.Source), statusOK,
						"removed ("+humanize(status.Reason)+")", shouldColorize(out)))
				}
				if len(removed) == 0 && err == nil {
					fmt.Fprintln(out, "No stale markers")
				}
				return err
			}

			statuses, err := ledger.Inspect(cfg.Paths.InputDir)
			if err != nil {
				return err
			}
			if len(statuses) == 0 {
				fmt.Fprintln(out, "No claim markers")
				return nil
			}
			fmt.Fprintln(out, renderTable([]column{{title: "Source"}, {title: "Owner"}, {title: "Age", numeric: true}, {title: "State"}}, buildMarkerRows(statuses)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&clean, "clean", false, "Remove stale markers")
	return cmd
}

func buildMarkerRows(statuses []claim.Status) [][]string {
	rows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		owner := "unknown"
		if status.Parsed {
			owner = fmt.Sprintf("pid %d@%s", status.Marker.PID, status.Marker.Host)
		}
		state := "Live"
		if status.Stale {
			state = "Stale (" + humanize(status.Reason) + ")"
		}
		rows = append(rows, []string{
			filepath.Base(status.Source),
			owner,
			formatAge(status.Age),
			state,
		})
	}
	return rows
}
