package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gallerina/internal/api"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	enqueueCmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue background generation work",
	}

	enqueueCmd.AddCommand(newEnqueueThumbnailCommand(ctx))
	enqueueCmd.AddCommand(newEnqueueFolderCommand(ctx))

	return enqueueCmd
}

func newEnqueueThumbnailCommand(ctx *commandContext) *cobra.Command {
	var tier int

	cmd := &cobra.Command{
		Use:   "thumbnail <source/path>",
		Short: "Queue a thumbnail for one file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if tier <= 0 {
				tier = cfg.Thumbnails.StandardTier
			}

			var resp api.EnqueueResponse
			body := map[string]any{"target": args[0], "sizeTier": tier}
			if err := ctx.apiPost("/api/thumbnails", body, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch resp.Outcome {
			case "queued":
				fmt.Fprintf(out, "Queued %s at tier %d (job %d)\n", args[0], tier, resp.Job.ID)
			case "already_queued":
				fmt.Fprintf(out, "%s is already queued at tier %d (job %d)\n", args[0], tier, resp.Job.ID)
			case "already_cached":
				fmt.Fprintf(out, "%s is already cached at tier %d\n", args[0], tier)
			default:
				fmt.Fprintf(out, "Outcome: %s\n", resp.Outcome)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&tier, "tier", 0, "Size tier in pixels (defaults to the standard tier)")
	return cmd
}

func newEnqueueFolderCommand(ctx *commandContext) *cobra.Command {
	var tier int

	cmd := &cobra.Command{
		Use:   "folder <source/folder>",
		Short: "Queue thumbnails for every image in a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if tier <= 0 {
				tier = cfg.Thumbnails.StandardTier
			}

			var resp api.FolderEnqueueResponse
			body := map[string]any{"folder": args[0], "sizeTier": tier}
			if err := ctx.apiPost("/api/thumbnails/folder", body, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case resp.Outcome == "queued" && resp.Job != nil:
				fmt.Fprintf(out, "Queued folder job %d covering %d images at tier %d\n",
					resp.Job.ID, resp.Job.TotalUnits, tier)
			case resp.Outcome == "already_queued" && resp.Job != nil:
				fmt.Fprintf(out, "%s is already queued at tier %d (job %d, %d/%d done)\n",
					args[0], tier, resp.Job.ID, resp.Job.ProcessedUnits, resp.Job.TotalUnits)
			case resp.Outcome == "already_cached":
				fmt.Fprintf(out, "%s is already cached at tier %d\n", args[0], tier)
			default:
				fmt.Fprintf(out, "Outcome: %s\n", resp.Outcome)
			}
			if resp.RawPreviewsQueued > 0 {
				fmt.Fprintf(out, "Queued %d RAW preview(s)\n", resp.RawPreviewsQueued)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&tier, "tier", 0, "Size tier in pixels (defaults to the standard tier)")
	return cmd
}

func newZipCommand(ctx *commandContext) *cobra.Command {
	zipCmd := &cobra.Command{
		Use:   "zip",
		Short: "Archive assembly",
	}

	zipCmd.AddCommand(newZipRequestCommand(ctx))
	zipCmd.AddCommand(newZipStatusCommand(ctx))

	return zipCmd
}

func newZipRequestCommand(ctx *commandContext) *cobra.Command {
	var files []string
	var session string

	cmd := &cobra.Command{
		Use:   "request [source/folder]",
		Short: "Queue a downloadable archive of a folder or file list",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(files) == 0 {
				return fmt.Errorf("name a folder or pass --file at least once")
			}
			if len(args) == 1 && len(files) > 0 {
				return fmt.Errorf("a folder argument and --file are mutually exclusive")
			}

			body := map[string]any{}
			if session != "" {
				body["sessionId"] = session
			}
			if len(args) == 1 {
				body["folder"] = args[0]
			} else {
				body["members"] = files
			}

			var resp api.EnqueueResponse
			if err := ctx.apiPost("/api/zips", body, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if resp.Outcome == "already_queued" {
				fmt.Fprintf(out, "Archive already queued; token %s\n", resp.Token)
				return nil
			}
			fmt.Fprintf(out, "Archive queued; token %s\n", resp.Token)
			fmt.Fprintf(out, "Poll with `gallerina zip status %s`\n", resp.Token)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&files, "file", nil, "Archive an explicit file (repeatable)")
	cmd.Flags().StringVar(&session, "session", "", "Session label for later status queries")
	return cmd
}

func newZipStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <token>",
		Short: "Show the state of a queued archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var view api.JobView
			if err := ctx.apiGet("/api/zips/"+args[0], &view); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Token:    %s\n", args[0])
			fmt.Fprintf(out, "Status:   %s\n", view.Status)
			fmt.Fprintf(out, "Progress: %d/%d (%.0f%%)\n", view.ProcessedUnits, view.TotalUnits, view.Percent)
			if view.CurrentUnit != "" {
				fmt.Fprintf(out, "Current:  %s\n", view.CurrentUnit)
			}
			if view.ResultMessage != "" {
				fmt.Fprintf(out, "Result:   %s\n", view.ResultMessage)
			}
			return nil
		},
	}
}
