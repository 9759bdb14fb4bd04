package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dpshade/wakatime-mcp/internal/usage"
)

var usageDays int

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show tool call counts from the usage log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is not set, the usage log is disabled")
		}
		if usageDays <= 0 {
			return fmt.Errorf("--days must be positive")
		}
		store, err := usage.Open(cmd.Context(), cfg.Database.URL, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		since := time.Now().AddDate(0, 0, -usageDays)
		return runUsage(cmd.Context(), store, since, cmd.OutOrStdout())
	},
}

func init() {
	usageCmd.Flags().IntVar(&usageDays, "days", 7, "Look back this many days")
}

type toolCounter interface {
	CountByTool(ctx context.Context, since time.Time) ([]usage.ToolCount, error)
}

func runUsage(ctx context.Context, store toolCounter, since time.Time, out io.Writer) error {
	counts, err := store.CountByTool(ctx, since)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Fprintf(out, "No tool calls since %s\n", since.Format(time.DateOnly))
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tCALLS")
	var total int64
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\n", c.Tool, c.Count)
		total += c.Count
	}
	fmt.Fprintf(tw, "total\t%d\n", total)
	return tw.Flush()
}
