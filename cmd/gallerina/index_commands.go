package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gallerina/internal/cachekey"
	"gallerina/internal/dirindex"
	"gallerina/internal/logging"
	"gallerina/internal/sources"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Directory index maintenance",
	}

	indexCmd.AddCommand(newIndexRebuildCommand(ctx))
	indexCmd.AddCommand(newIndexListCommand(ctx))

	return indexCmd
}

func newIndexRebuildCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rescan source roots and publish a fresh index",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			// Prefer the daemon so its published batch stays authoritative.
			var resp map[string]any
			if err := ctx.apiPost("/api/index/rebuild", map[string]any{}, &resp); err == nil {
				fmt.Fprintf(out, "Rebuilt index: %v entries (batch %v)\n", resp["entries"], resp["batchId"])
				return nil
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			index, err := dirindex.Open(cfg)
			if err != nil {
				return err
			}
			defer index.Close()

			validator := sources.NewValidator(cfg)
			paths := cachekey.NewResolver(cfg.Paths.CacheRoot)
			scanner := dirindex.NewScanner(cfg, validator, paths)
			rebuilder := dirindex.NewRebuilder(scanner, index, logging.NewNop())
			batchID, count, err := rebuilder.Rebuild(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Rebuilt index: %d entries (batch %s)\n", count, batchID)
			return nil
		},
	}
}

func newIndexListCommand(ctx *commandContext) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the active directory index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			index, err := dirindex.Open(cfg)
			if err != nil {
				return err
			}
			defer index.Close()

			entries, err := index.Active(context.Background(), source)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Index is empty; run `gallerina index rebuild`")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				path := entry.DirectoryPath
				if path == "" {
					path = "(root)"
				}
				rows = append(rows, []string{
					entry.SourceKey,
					path,
					strconv.Itoa(entry.FileCount),
					yesNo(entry.HasThumbnail),
					yesNo(entry.IsProtected),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Source", "Folder", "Files", "Thumb", "Protected"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Limit to one source key")
	return cmd
}
