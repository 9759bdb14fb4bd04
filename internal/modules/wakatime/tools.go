package wakatime

import (
	"strings"

	"github.com/dpshade/wakatime-mcp/internal/modules"
	"github.com/dpshade/wakatime-mcp/pkg/wakatimeapi"
)

// formatProperty is accepted by every tool.
var formatProperty = modules.Property{
	Type:        "string",
	Description: "Output format: json (default) or markdown",
	Enum:        []string{"json", "markdown"},
	Default:     "json",
}

func schema(props map[string]modules.Property) modules.InputSchema {
	all := map[string]modules.Property{"format": formatProperty}
	for k, v := range props {
		all[k] = v
	}
	return modules.InputSchema{Type: "object", Properties: all}
}

var toolDefinitions = []modules.Tool{
	{
		ID:          "wakatime:get_coding_stats",
		Name:        "get_coding_stats",
		Description: "Get your coding statistics for a time range. Returns languages, projects, editors, total time, daily average, and best coding day. Use this to understand coding patterns and productivity over time.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: schema(map[string]modules.Property{
			"range": {
				Type:        "string",
				Description: "Time range - one of " + strings.Join(wakatimeapi.Ranges, ", "),
				Default:     "last_7_days",
			},
		}),
	},
	{
		ID:          "wakatime:get_summary",
		Name:        "get_summary",
		Description: "Get a summary of coding activity for a date or date range. Shows time distribution across projects, languages, editors. Defaults to last ~24 hours (yesterday + today). Use for daily standups, weekly reviews, or analyzing specific time periods.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: schema(map[string]modules.Property{
			"start_date": {Type: "string", Description: "Start date in YYYY-MM-DD format (defaults to yesterday for ~24hr view)"},
			"end_date":   {Type: "string", Description: "End date in YYYY-MM-DD format (defaults to today)"},
			"project":    {Type: "string", Description: "Optional project name to filter by"},
		}),
	},
	{
		ID:          "wakatime:get_all_time",
		Name:        "get_all_time",
		Description: "Get your total coding time since you created your WakaTime account. Optionally filter by a specific project. Great for seeing your all-time investment in coding.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: schema(map[string]modules.Property{
			"project": {Type: "string", Description: "Optional project name to filter by"},
		}),
	},
	{
		ID:          "wakatime:get_status_bar",
		Name:        "get_status_bar",
		Description: "Get your current coding status - what you're working on right now and today's total time. Shows the same info as the WakaTime status bar in your editor.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: schema(nil),
	},
	{
		ID:          "wakatime:list_projects",
		Name:        "list_projects",
		Description: "List your WakaTime projects. Optionally search by name. Returns project names with their last activity timestamps.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: schema(map[string]modules.Property{
			"query": {Type: "string", Description: "Optional search query to filter projects"},
		}),
	},
	{
		ID:          "wakatime:get_durations",
		Name:        "get_durations",
		Description: "Get the blocks of coding activity for a single day, with time per project and the first and last activity of the day. Defaults to today. Use to reconstruct when work happened during a day.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: schema(map[string]modules.Property{
			"date":    {Type: "string", Description: "Day in YYYY-MM-DD format (defaults to today)"},
			"project": {Type: "string", Description: "Optional project name to filter by"},
		}),
	},
	{
		ID:          "wakatime:get_goals",
		Name:        "get_goals",
		Description: "List your WakaTime coding goals with their targets and current status. Use to check progress against daily or weekly coding targets.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: schema(nil),
	},
	{
		ID:          "wakatime:get_user",
		Name:        "get_user",
		Description: "Get your WakaTime profile: username, display name, timezone, plan, and last active project. Use to confirm which account the stats belong to.",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: schema(nil),
	},
}
