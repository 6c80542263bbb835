package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"clipforge/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the job store",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsStatsCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := jobs.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			statuses, err := parseStatusFilter(statusFilter)
			if err != nil {
				return err
			}

			list, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
				return nil
			}

			colorize := isatty.IsTerminal(os.Stdout.Fd())
			rows := make([][]string, 0, len(list))
			for _, job := range list {
				rows = append(rows, []string{
					job.ID,
					renderStatus(job.Status, colorize),
					fmt.Sprintf("%d", job.ClipCount),
					fmt.Sprintf("%d", len(job.ClipsPath)),
					job.CreatedAt.Local().Format(time.DateTime),
					truncate(job.URL, 48),
				})
			}
			headers := []string{"ID", "STATUS", "REQUESTED", "CLIPS", "CREATED", "URL"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Comma-separated status filter (queued,downloading,...)")
	return cmd
}

func newJobsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show job counts grouped by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := jobs.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(stats))
			for _, status := range jobs.AllStatuses() {
				if count, ok := stats[status]; ok {
					rows = append(rows, []string{string(status), fmt.Sprintf("%d", count)})
				}
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"STATUS", "COUNT"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}

func parseStatusFilter(filter string) ([]jobs.Status, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil, nil
	}
	parts := strings.Split(filter, ",")
	statuses := make([]jobs.Status, 0, len(parts))
	for _, part := range parts {
		status, ok := jobs.ParseStatus(part)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", strings.TrimSpace(part))
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func renderStatus(status jobs.Status, colorize bool) string {
	if !colorize {
		return string(status)
	}
	switch status {
	case jobs.StatusCompleted:
		return text.FgGreen.Sprint(status)
	case jobs.StatusFailed:
		return text.FgRed.Sprint(status)
	case jobs.StatusQueued:
		return text.FgYellow.Sprint(status)
	default:
		return text.FgCyan.Sprint(status)
	}
}

func truncate(value string, limit int) string {
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
