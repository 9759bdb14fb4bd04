package wakatime

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// Compact formatters per tool: (toolName, JSON) → Markdown
// =============================================================================

func formatCompact(toolName, jsonStr string) string {
	switch toolName {
	case "get_coding_stats":
		return render[codingStats](jsonStr, statsToMD)
	case "get_summary":
		return summaryToMD(jsonStr)
	case "get_all_time":
		return render[allTime](jsonStr, allTimeToMD)
	case "get_status_bar":
		return render[statusBar](jsonStr, statusBarToMD)
	case "list_projects":
		return render[projectList](jsonStr, projectsToMD)
	case "get_durations":
		return render[dayDurations](jsonStr, durationsToMD)
	case "get_goals":
		return render[goalList](jsonStr, goalsToMD)
	case "get_user":
		return render[userProfile](jsonStr, userToMD)
	default:
		return jsonStr
	}
}

// render decodes jsonStr into T and formats it. Advisories and anything that
// does not decode are returned unchanged.
func render[T any](jsonStr string, f func(*strings.Builder, T)) string {
	if isAdvisory(jsonStr) {
		return jsonStr
	}
	var v T
	if err := json.Unmarshal([]byte(jsonStr), &v); err != nil {
		return jsonStr
	}
	var sb strings.Builder
	f(&sb, v)
	return strings.TrimRight(sb.String(), "\n")
}

func isAdvisory(jsonStr string) bool {
	var probe struct {
		Error string `json:"error"`
	}
	return json.Unmarshal([]byte(jsonStr), &probe) == nil && probe.Error != ""
}

func summaryToMD(jsonStr string) string {
	var probe struct {
		Date    string `json:"date"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &probe); err != nil {
		return jsonStr
	}
	switch {
	case probe.Message != "":
		return render[emptySummary](jsonStr, emptySummaryToMD)
	case probe.Date != "":
		return render[daySummary](jsonStr, daySummaryToMD)
	default:
		return render[rangeSummary](jsonStr, rangeSummaryToMD)
	}
}

func statsToMD(sb *strings.Builder, s codingStats) {
	fmt.Fprintf(sb, "# Coding stats: %s\n", s.Range)
	fmt.Fprintf(sb, "- **Total**: %s\n", s.TotalTime)
	fmt.Fprintf(sb, "- **Daily average**: %s\n", s.DailyAverage)
	if s.BestDay != nil {
		fmt.Fprintf(sb, "- **Best day**: %s (%s)\n", s.BestDay.Date, s.BestDay.Time)
	}
	timedTable(sb, "Languages", s.Languages)
	timedTable(sb, "Projects", s.Projects)
	table(sb, "Editors", s.Editors)
	table(sb, "Operating systems", s.OperatingSystems)
	table(sb, "Categories", s.Categories)
}

func emptySummaryToMD(sb *strings.Builder, s emptySummary) {
	fmt.Fprintf(sb, "# Summary %s to %s\n", s.StartDate, s.EndDate)
	fmt.Fprintf(sb, "%s\n", s.Message)
}

func daySummaryToMD(sb *strings.Builder, s daySummary) {
	fmt.Fprintf(sb, "# Summary %s\n", s.Date)
	fmt.Fprintf(sb, "- **Total**: %s\n", s.TotalTime)
	if s.ProjectFilter != "" {
		fmt.Fprintf(sb, "- **Project**: %s\n", s.ProjectFilter)
	}
	timedTable(sb, "Projects", s.Projects)
	table(sb, "Languages", s.Languages)
	table(sb, "Editors", s.Editors)
	table(sb, "Categories", s.Categories)
}

func rangeSummaryToMD(sb *strings.Builder, s rangeSummary) {
	fmt.Fprintf(sb, "# Summary %s to %s (%d days)\n", s.StartDate, s.EndDate, s.NumDays)
	fmt.Fprintf(sb, "- **Total**: %s\n", s.TotalTime)
	fmt.Fprintf(sb, "- **Daily average**: %s\n", s.DailyAverage)
	if s.ProjectFilter != "" {
		fmt.Fprintf(sb, "- **Project**: %s\n", s.ProjectFilter)
	}
	timedTable(sb, "Projects", s.Projects)
	timedTable(sb, "Languages", s.Languages)
	timedTable(sb, "Editors", s.Editors)
	timedTable(sb, "Categories", s.Categories)
}

func allTimeToMD(sb *strings.Builder, a allTime) {
	title := "All time"
	if a.Project != "" {
		title += ": " + a.Project
	}
	fmt.Fprintf(sb, "# %s\n", title)
	fmt.Fprintf(sb, "- **Total**: %s\n", a.TotalTime)
	fmt.Fprintf(sb, "- **Daily average**: %s\n", a.DailyAverage)
	if a.Range != nil {
		fmt.Fprintf(sb, "- **Since**: %s\n", orDefault(a.Range.StartDate, a.Range.Start))
	}
	if !a.IsUpToDate {
		sb.WriteString("- _Still computing, totals may be incomplete_\n")
	}
}

func statusBarToMD(sb *strings.Builder, s statusBar) {
	sb.WriteString("# Today\n")
	fmt.Fprintf(sb, "- **Total**: %s\n", s.TodayTotal)
	table(sb, "Categories", s.Categories)
}

func projectsToMD(sb *strings.Builder, p projectList) {
	fmt.Fprintf(sb, "# %d projects\n", p.TotalCount)
	if len(p.Projects) == 0 {
		return
	}
	sb.WriteString("\n| Name | Last heartbeat |\n|---|---|\n")
	for _, pr := range p.Projects {
		fmt.Fprintf(sb, "| %s | %s |\n", cell(pr.Name), orDefault(deref(pr.LastHeartbeatAt), "-"))
	}
}

func durationsToMD(sb *strings.Builder, d dayDurations) {
	fmt.Fprintf(sb, "# Durations %s\n", d.Date)
	fmt.Fprintf(sb, "- **Total**: %s in %d blocks\n", d.TotalTime, d.BlockCount)
	if d.FirstActivity != "" {
		fmt.Fprintf(sb, "- **Active**: %s to %s\n", d.FirstActivity, d.LastActivity)
	}
	timedTable(sb, "Projects", d.Projects)
}

func goalsToMD(sb *strings.Builder, g goalList) {
	fmt.Fprintf(sb, "# %d goals\n", g.TotalCount)
	if len(g.Goals) == 0 {
		return
	}
	sb.WriteString("\n| Title | Status | Target |\n|---|---|---|\n")
	for _, goal := range g.Goals {
		fmt.Fprintf(sb, "| %s | %s | %s |\n", cell(goal.Title), goal.Status, goal.Target)
	}
}

func userToMD(sb *strings.Builder, u userProfile) {
	fmt.Fprintf(sb, "# %s\n", orDefault(u.DisplayName, u.Username))
	if u.Username != "" {
		fmt.Fprintf(sb, "- **Username**: %s\n", u.Username)
	}
	fmt.Fprintf(sb, "- **Timezone**: %s\n", u.Timezone)
	fmt.Fprintf(sb, "- **Plan**: %s\n", u.Plan)
	if u.LastProject != "" {
		fmt.Fprintf(sb, "- **Last project**: %s\n", u.LastProject)
	}
}

// table writes a "Name | Time | %" section, nothing when items is empty.
func table(sb *strings.Builder, title string, items []breakdownItem) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n## %s\n| Name | Time | %% |\n|---|---|---|\n", title)
	for _, it := range items {
		fmt.Fprintf(sb, "| %s | %s | %.1f |\n", cell(it.Name), it.Time, it.Percent)
	}
}

func timedTable(sb *strings.Builder, title string, items []timedItem) {
	plain := make([]breakdownItem, len(items))
	for i, it := range items {
		plain[i] = breakdownItem{Name: it.Name, Time: it.Time, Percent: it.Percent}
	}
	table(sb, title, plain)
}

// cell escapes pipes so a value cannot break the table.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
