package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"reframe/internal/config"
	"reframe/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var summary bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded conversions",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]history.Status, 0, len(statusFlags))
			for _, raw := range statusFlags {
				status, err := history.ParseStatus(raw)
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			}

			return ctx.withHistory(func(_ *config.Config, store *history.Store) error {
				out := cmd.OutOrStdout()
				if summary {
					stats, err := store.Stats(cmd.Context())
					if err != nil {
						return err
					}
					rows := make([][]string, 0, len(stats))
					for _, status := range history.AllStatuses() {
						if n := stats[status]; n > 0 {
							rows = append(rows, []string{humanize(string(status)), strconv.Itoa(n)})
						}
					}
					if len(rows) == 0 {
						fmt.Fprintln(out, "No conversions recorded")
						return nil
					}
					fmt.Fprintln(out, renderTable([]column{{title: "Status"}, {title: "Count", numeric: true}}, rows))
					return nil
				}

				records, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(out, "No conversions recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable(historyColumns, buildHistoryRows(records)))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (converting, succeeded, failed, poisoned, skipped)")
	cmd.Flags().BoolVar(&summary, "summary", false, "Show counts per status instead of rows")
	return cmd
}

var historyColumns = []column{
	{title: "Source"},
	{title: "Status"},
	{title: "Attempts", numeric: true},
	{title: "Duration", numeric: true},
	{title: "Updated"},
	{title: "Detail", maxWidth: 60},
}

func buildHistoryRows(records []history.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		detail := rec.LastError
		if detail == "" {
			detail = humanize(rec.Reason)
		}
		duration := "-"
		if rec.Duration > 0 {
			duration = rec.Duration.Round(time.Second).String()
		}
		rows = append(rows, []string{
			filepath.Base(rec.SourcePath),
			humanize(string(rec.Status)),
			strconv.Itoa(rec.Attempts),
			duration,
			formatTimestamp(rec.UpdatedAt),
			detail,
		})
	}
	return rows
}
