package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gallerina/internal/api"
	"gallerina/internal/jobs"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var overview api.OverviewResponse
			if err := ctx.apiGet("/api/status", &overview); err != nil {
				// The daemon may simply not be running; fall back to
				// reading the store directly.
				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not reachable", colorize))
				return ctx.withStore(func(store *jobs.Store) error {
					stats, statsErr := store.Stats(context.Background())
					if statsErr != nil {
						return statsErr
					}
					printKindTable(cmd, statsToViews(stats), colorize)
					return nil
				})
			}

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			daemonKind := statusWarn
			daemonMsg := "stopped"
			if overview.Running {
				daemonKind = statusOK
				daemonMsg = "running"
			}
			fmt.Fprintln(out, renderStatusLine("Daemon", daemonKind, daemonMsg, colorize))

			printKindTable(cmd, overview.Kinds, colorize)
			return nil
		},
	}
}

func printKindTable(cmd *cobra.Command, kinds []api.KindCounts, colorize bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Queues", colorize) {
		fmt.Fprintln(out, line)
	}
	if len(kinds) == 0 {
		fmt.Fprintln(out, statusIndent+"no queues")
		return
	}

	rows := make([][]string, 0, len(kinds))
	for _, kind := range kinds {
		rows = append(rows, []string{
			kind.Kind,
			strconv.Itoa(kind.Total),
			formatCounts(kind.Counts),
			strconv.Itoa(kind.Stalled),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Kind", "Total", "By status", "Stalled"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight},
	))
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", key, counts[key]))
	}
	return strings.Join(parts, " ")
}

func statsToViews(stats []jobs.KindStats) []api.KindCounts {
	views := make([]api.KindCounts, 0, len(stats))
	for _, stat := range stats {
		counts := make(map[string]int, len(stat.Counts))
		for status, count := range stat.Counts {
			counts[string(status)] = count
		}
		views = append(views, api.KindCounts{
			Kind:   string(stat.Kind),
			Total:  stat.Total,
			Counts: counts,
		})
	}
	return views
}
