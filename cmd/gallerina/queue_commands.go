package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gallerina/internal/jobs"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Job queue maintenance",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))
	queueCmd.AddCommand(newQueueCancelRecentCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var statusFlag string
	var sinceHours int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobs.Store) error {
				kinds := jobs.AllKinds()
				if kindFlag != "" {
					kind, ok := jobs.ParseKind(kindFlag)
					if !ok {
						return fmt.Errorf("unknown job kind %q", kindFlag)
					}
					kinds = []jobs.Kind{kind}
				}

				var statuses []jobs.Status
				if statusFlag != "" {
					for _, raw := range strings.Split(statusFlag, ",") {
						status, ok := jobs.ParseStatus(raw)
						if !ok {
							return fmt.Errorf("unknown status %q", raw)
						}
						statuses = append(statuses, status)
					}
				}

				since := time.Now().Add(-time.Duration(sinceHours) * time.Hour)
				var rows [][]string
				for _, kind := range kinds {
					var listed []*jobs.Job
					var err error
					if len(statuses) > 0 {
						listed, err = store.ListByStatus(context.Background(), kind, statuses...)
					} else {
						listed, err = store.ListSince(context.Background(), kind, since)
					}
					if err != nil {
						return err
					}
					for _, job := range listed {
						rows = append(rows, jobRow(job))
					}
				}

				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No jobs found")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Kind", "Target", "Tier", "Status", "Progress", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "", "Limit to one job kind (thumbnail, zip, raw_preview)")
	cmd.Flags().StringVar(&statusFlag, "status", "", "Comma-separated status filter")
	cmd.Flags().IntVar(&sinceHours, "since", 24, "Look-back window in hours")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <kind> <id>",
		Short: "Requeue a failed job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseKindAndID(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *jobs.Store) error {
				job, err := store.RetryFailed(context.Background(), kind, id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if job == nil {
					fmt.Fprintf(out, "Job %d is not failed; nothing to retry\n", id)
					return nil
				}
				fmt.Fprintf(out, "Requeued %s job %d (%s)\n", kind, job.ID, job.Target)
				return nil
			})
		},
	}
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <kind> <id>",
		Short: "Cancel a recently created job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseKindAndID(args)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			window := time.Duration(cfg.Workers.CancelWindow) * time.Second
			return ctx.withStore(func(store *jobs.Store) error {
				cancelled, err := store.Cancel(context.Background(), kind, id, window)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !cancelled {
					fmt.Fprintf(out, "Job %d was not cancelled (already finished or outside the %s window)\n", id, window)
					return nil
				}
				fmt.Fprintf(out, "Cancelled %s job %d\n", kind, id)
				return nil
			})
		},
	}
}

func newQueueCancelRecentCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string

	cmd := &cobra.Command{
		Use:   "cancel-recent",
		Short: "Cancel every job created inside the cancellation window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			kinds := jobs.AllKinds()
			if kindFlag != "" {
				kind, ok := jobs.ParseKind(kindFlag)
				if !ok {
					return fmt.Errorf("unknown job kind %q", kindFlag)
				}
				kinds = []jobs.Kind{kind}
			}
			window := time.Duration(cfg.Workers.CancelWindow) * time.Second
			return ctx.withStore(func(store *jobs.Store) error {
				var total int64
				for _, kind := range kinds {
					cancelled, err := store.CancelRecent(context.Background(), kind, window)
					if err != nil {
						return err
					}
					total += cancelled
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %d job(s)\n", total)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "", "Limit to one job kind")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var failedOnly bool
	var all bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs from the queue",
		Long:  "Removes completed and downloaded jobs. Use --failed to clear only failures or --all to clear every terminal job.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if failedOnly && all {
				return fmt.Errorf("--failed and --all are mutually exclusive")
			}
			return ctx.withStore(func(store *jobs.Store) error {
				var total int64
				for _, kind := range jobs.AllKinds() {
					var removed int64
					var err error
					switch {
					case all:
						removed, err = store.ClearTerminal(context.Background(), kind)
					case failedOnly:
						removed, err = store.ClearFailed(context.Background(), kind)
					default:
						removed, err = store.ClearCompleted(context.Background(), kind)
					}
					if err != nil {
						return err
					}
					total += removed
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", total)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Clear only failed jobs")
	cmd.Flags().BoolVar(&all, "all", false, "Clear every terminal job, including failures and cancellations")
	return cmd
}

func parseKindAndID(args []string) (jobs.Kind, int64, error) {
	kind, ok := jobs.ParseKind(args[0])
	if !ok {
		return "", 0, fmt.Errorf("unknown job kind %q", args[0])
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid job id %q", args[1])
	}
	return kind, id, nil
}

func jobRow(job *jobs.Job) []string {
	tier := ""
	if job.SizeTier > 0 {
		tier = strconv.Itoa(job.SizeTier)
	}
	progress := fmt.Sprintf("%d/%d", job.ProcessedUnits, job.TotalUnits)
	return []string{
		strconv.FormatInt(job.ID, 10),
		string(job.Kind),
		job.Target,
		tier,
		string(job.Status),
		progress,
		job.CreatedAt.Local().Format("2006-01-02 15:04:05"),
	}
}
