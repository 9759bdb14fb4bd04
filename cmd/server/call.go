package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dpshade/wakatime-mcp/internal/modules"
)

var callCmd = &cobra.Command{
	Use:   "call [tool] [json-args]",
	Short: "Run a single tool and print its result",
	Long: `Runs one tool through the same registry the server uses and prints the
text content to stdout. Arguments are a JSON object.

Examples:
  wakatime-mcp call get_status_bar
  wakatime-mcp call get_summary '{"start_date":"2024-03-01","end_date":"2024-03-07"}'
  wakatime-mcp call get_coding_stats '{"range":"last_30_days","format":"markdown"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry(cfg, logger, metrics)
		if err != nil {
			return err
		}
		raw := ""
		if len(args) == 2 {
			raw = args[1]
		}
		return runCall(cmd.Context(), registry, args[0], raw, cmd.OutOrStdout())
	},
}

// runCall prints the tool result. Tool errors (isError) fail the command;
// advisories are printed like any other result.
func runCall(ctx context.Context, registry *modules.Registry, tool, rawArgs string, out io.Writer) error {
	params := map[string]any{}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &params); err != nil {
			return fmt.Errorf("arguments must be a JSON object: %w", err)
		}
	}

	result, info := registry.Run(ctx, tool, params)
	for _, c := range result.Content {
		fmt.Fprintln(out, c.Text)
	}
	if result.IsError {
		return fmt.Errorf("%s failed (%s)", tool, info.Kind)
	}
	return nil
}
