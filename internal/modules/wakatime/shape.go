package wakatime

import (
	"context"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/dpshade/wakatime-mcp/internal/modules"
	"github.com/dpshade/wakatime-mcp/pkg/wakatimeapi"
)

// Top-N limits for breakdown lists.
const (
	topMajor    = 10 // languages, projects
	topMinor    = 5  // editors, operating systems, categories
	topProjects = 50 // list_projects
)

const noActivityMessage = "No coding activity recorded for this period."

// =============================================================================
// Output shapes
// =============================================================================

type breakdownItem struct {
	Name    string  `json:"name"`
	Time    string  `json:"time"`
	Percent float64 `json:"percent"`
}

type timedItem struct {
	Name         string  `json:"name"`
	Time         string  `json:"time"`
	Percent      float64 `json:"percent"`
	TotalSeconds float64 `json:"total_seconds"`
}

type bestDay struct {
	Date         string  `json:"date"`
	Time         string  `json:"time"`
	TotalSeconds float64 `json:"total_seconds"`
}

type codingStats struct {
	Range                 string          `json:"range"`
	TotalTime             string          `json:"total_time"`
	TotalSeconds          float64         `json:"total_seconds"`
	DailyAverage          string          `json:"daily_average"`
	DaysIncludingHolidays int             `json:"days_including_holidays"`
	DaysMinusHolidays     int             `json:"days_minus_holidays"`
	BestDay               *bestDay        `json:"best_day,omitempty"`
	Languages             []timedItem     `json:"languages"`
	Projects              []timedItem     `json:"projects"`
	Editors               []breakdownItem `json:"editors"`
	OperatingSystems      []breakdownItem `json:"operating_systems"`
	Categories            []breakdownItem `json:"categories"`
}

type emptySummary struct {
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	TotalTime    string  `json:"total_time"`
	TotalSeconds float64 `json:"total_seconds"`
	Message      string  `json:"message"`
}

type daySummary struct {
	Date          string          `json:"date"`
	TotalTime     string          `json:"total_time"`
	TotalSeconds  float64         `json:"total_seconds"`
	Projects      []timedItem     `json:"projects"`
	Languages     []breakdownItem `json:"languages"`
	Editors       []breakdownItem `json:"editors"`
	Categories    []breakdownItem `json:"categories"`
	ProjectFilter string          `json:"project_filter,omitempty"`
}

type rangeSummary struct {
	StartDate     string      `json:"start_date"`
	EndDate       string      `json:"end_date"`
	NumDays       int         `json:"num_days"`
	TotalTime     string      `json:"total_time"`
	TotalSeconds  float64     `json:"total_seconds"`
	DailyAverage  string      `json:"daily_average"`
	Projects      []timedItem `json:"projects"`
	Languages     []timedItem `json:"languages"`
	Editors       []timedItem `json:"editors"`
	Categories    []timedItem `json:"categories"`
	ProjectFilter string      `json:"project_filter,omitempty"`
}

type allTimeRange struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type allTime struct {
	TotalTime           string        `json:"total_time"`
	TotalSeconds        float64       `json:"total_seconds"`
	DailyAverageSeconds float64       `json:"daily_average_seconds"`
	IsUpToDate          bool          `json:"is_up_to_date"`
	Range               *allTimeRange `json:"range,omitempty"`
	Project             string        `json:"project,omitempty"`
	DailyAverage        string        `json:"daily_average"`
}

type statusBar struct {
	TodayTotal        string          `json:"today_total"`
	TodayTotalSeconds float64         `json:"today_total_seconds"`
	IsCached          bool            `json:"is_cached"`
	Categories        []breakdownItem `json:"categories,omitempty"`
}

type projectItem struct {
	Name            string  `json:"name"`
	ID              string  `json:"id"`
	LastHeartbeatAt *string `json:"last_heartbeat_at"`
	CreatedAt       *string `json:"created_at"`
	HasPublicURL    bool    `json:"has_public_url"`
}

type projectList struct {
	TotalCount int           `json:"total_count"`
	Projects   []projectItem `json:"projects"`
	Query      string        `json:"query,omitempty"`
}

type dayDurations struct {
	Date          string      `json:"date"`
	Timezone      string      `json:"timezone,omitempty"`
	TotalTime     string      `json:"total_time"`
	TotalSeconds  float64     `json:"total_seconds"`
	BlockCount    int         `json:"block_count"`
	FirstActivity string      `json:"first_activity,omitempty"`
	LastActivity  string      `json:"last_activity,omitempty"`
	Projects      []timedItem `json:"projects"`
	ProjectFilter string      `json:"project_filter,omitempty"`
}

type goalItem struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Status        string  `json:"status"`
	IsEnabled     bool    `json:"is_enabled"`
	Type          string  `json:"type"`
	Delta         string  `json:"delta"`
	Target        string  `json:"target"`
	TargetSeconds float64 `json:"target_seconds"`
	RangeText     string  `json:"range_text,omitempty"`
}

type goalList struct {
	TotalCount int        `json:"total_count"`
	Goals      []goalItem `json:"goals"`
}

type userProfile struct {
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name"`
	Timezone    string `json:"timezone"`
	Plan        string `json:"plan"`
	LastProject string `json:"last_project,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// =============================================================================
// Helpers
// =============================================================================

// round1 rounds to one decimal place using the exact binary value, so 0.35
// (stored as 0.34999...) becomes 0.3 and exact ties go to the even digit.
func round1(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	if err != nil {
		return v
	}
	return r
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func breakdown(items []wakatimeapi.StatItem, limit int) []breakdownItem {
	items = items[:min(len(items), limit)]
	out := make([]breakdownItem, 0, len(items))
	for _, it := range items {
		out = append(out, breakdownItem{Name: it.Name, Time: it.Text, Percent: round1(it.Percent)})
	}
	return out
}

func timedBreakdown(items []wakatimeapi.StatItem, limit int) []timedItem {
	items = items[:min(len(items), limit)]
	out := make([]timedItem, 0, len(items))
	for _, it := range items {
		out = append(out, timedItem{Name: it.Name, Time: it.Text, Percent: round1(it.Percent), TotalSeconds: it.TotalSeconds})
	}
	return out
}

// tally accumulates seconds per name, remembering first-seen order.
type tally struct {
	order   []string
	seconds map[string]float64
}

func newTally() *tally {
	return &tally{seconds: make(map[string]float64)}
}

func (t *tally) add(name string, secs float64) {
	if name == "" {
		name = "Unknown"
	}
	if _, ok := t.seconds[name]; !ok {
		t.order = append(t.order, name)
	}
	t.seconds[name] += secs
}

func (t *tally) addAll(items []wakatimeapi.StatItem) {
	for _, it := range items {
		t.add(it.Name, it.TotalSeconds)
	}
}

// top returns the limit largest entries, descending by seconds with ties in
// first-seen order. Percent is relative to total, 0 when total is 0.
func (t *tally) top(limit int, total float64) []timedItem {
	names := slices.Clone(t.order)
	slices.SortStableFunc(names, func(a, b string) int {
		switch sa, sb := t.seconds[a], t.seconds[b]; {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		default:
			return 0
		}
	})
	names = names[:min(len(names), limit)]

	out := make([]timedItem, 0, len(names))
	for _, name := range names {
		secs := t.seconds[name]
		pct := 0.0
		if total > 0 {
			pct = round1(secs / total * 100)
		}
		out = append(out, timedItem{Name: name, Time: wakatimeapi.FormatSeconds(secs), Percent: pct, TotalSeconds: secs})
	}
	return out
}

// parseDateParam reads an optional YYYY-MM-DD parameter.
func parseDateParam(params map[string]any, key string, def time.Time) (time.Time, error) {
	s := modules.StringParam(params, key)
	if s == "" {
		return def, nil
	}
	d, err := time.Parse(wakatimeapi.DateLayout, s)
	if err != nil {
		return time.Time{}, validationAdvisory("Invalid date", key+" must be a date in YYYY-MM-DD format, got "+s)
	}
	return d, nil
}

// =============================================================================
// Handlers
// =============================================================================

func (m *WakaTimeModule) getCodingStats(ctx context.Context, params map[string]any) (string, error) {
	rng := orDefault(modules.StringParam(params, "range"), "last_7_days")

	stats, err := m.api.Stats(ctx, rng)
	if err != nil {
		return "", advise(err)
	}
	return modules.ToJSON(shapeStats(stats, rng))
}

func shapeStats(s *wakatimeapi.Stats, rng string) codingStats {
	out := codingStats{
		Range:                 orDefault(s.HumanReadableRange, rng),
		TotalTime:             orDefault(s.HumanReadableTotal, "0 mins"),
		TotalSeconds:          s.TotalSeconds,
		DailyAverage:          orDefault(s.HumanReadableDailyAverage, "0 mins"),
		DaysIncludingHolidays: s.DaysIncludingHolidays,
		DaysMinusHolidays:     s.DaysMinusHolidays,
		Languages:             timedBreakdown(s.Languages, topMajor),
		Projects:              timedBreakdown(s.Projects, topMajor),
		Editors:               breakdown(s.Editors, topMinor),
		OperatingSystems:      breakdown(s.OperatingSystems, topMinor),
		Categories:            breakdown(s.Categories, topMinor),
	}
	if s.BestDay != nil && s.BestDay.Date != "" {
		out.BestDay = &bestDay{Date: s.BestDay.Date, Time: s.BestDay.Text, TotalSeconds: s.BestDay.TotalSeconds}
	}
	return out
}

func (m *WakaTimeModule) getSummary(ctx context.Context, params map[string]any) (string, error) {
	today := m.today()
	start, err := parseDateParam(params, "start_date", today.AddDate(0, 0, -1))
	if err != nil {
		return "", err
	}
	end, err := parseDateParam(params, "end_date", today)
	if err != nil {
		return "", err
	}
	if end.Before(start) {
		return "", validationAdvisory("Invalid date range", "end_date cannot be before start_date")
	}
	project := modules.StringParam(params, "project")

	resp, err := m.api.Summaries(ctx, start, end, project)
	if err != nil {
		return "", advise(err)
	}

	if len(resp.Data) == 0 {
		return modules.ToJSON(emptySummary{
			StartDate: start.Format(wakatimeapi.DateLayout),
			EndDate:   end.Format(wakatimeapi.DateLayout),
			TotalTime: "0 mins",
			Message:   noActivityMessage,
		})
	}
	if start.Equal(end) {
		out := shapeDay(resp.Data[0], start)
		out.ProjectFilter = project
		return modules.ToJSON(out)
	}
	out := aggregateDays(resp.Data, start, end)
	out.ProjectFilter = project
	return modules.ToJSON(out)
}

func shapeDay(s wakatimeapi.Summary, day time.Time) daySummary {
	return daySummary{
		Date:         orDefault(s.Range.Date, day.Format(wakatimeapi.DateLayout)),
		TotalTime:    orDefault(s.GrandTotal.Text, "0 mins"),
		TotalSeconds: s.GrandTotal.TotalSeconds,
		Projects:     timedBreakdown(s.Projects, topMajor),
		Languages:    breakdown(s.Languages, topMajor),
		Editors:      breakdown(s.Editors, topMinor),
		Categories:   breakdown(s.Categories, topMinor),
	}
}

// aggregateDays sums daily summaries. Percentages are recomputed from the
// summed seconds, never taken from a single day.
func aggregateDays(days []wakatimeapi.Summary, start, end time.Time) rangeSummary {
	var total float64
	projects, languages, editors, categories := newTally(), newTally(), newTally(), newTally()
	for _, d := range days {
		total += d.GrandTotal.TotalSeconds
		projects.addAll(d.Projects)
		languages.addAll(d.Languages)
		editors.addAll(d.Editors)
		categories.addAll(d.Categories)
	}

	numDays := int(end.Sub(start)/(24*time.Hour)) + 1
	return rangeSummary{
		StartDate:    start.Format(wakatimeapi.DateLayout),
		EndDate:      end.Format(wakatimeapi.DateLayout),
		NumDays:      numDays,
		TotalTime:    wakatimeapi.FormatSeconds(total),
		TotalSeconds: total,
		DailyAverage: wakatimeapi.FormatSeconds(total / float64(numDays)),
		Projects:     projects.top(topMajor, total),
		Languages:    languages.top(topMajor, total),
		Editors:      editors.top(topMinor, total),
		Categories:   categories.top(topMinor, total),
	}
}

func (m *WakaTimeModule) getAllTime(ctx context.Context, params map[string]any) (string, error) {
	project := modules.StringParam(params, "project")

	data, err := m.api.AllTimeSinceToday(ctx, project)
	if err != nil {
		return "", advise(err)
	}

	out := allTime{
		TotalTime:           orDefault(data.Text, "0 mins"),
		TotalSeconds:        data.TotalSeconds,
		DailyAverageSeconds: data.DailyAverage,
		IsUpToDate:          data.IsUpToDate,
		Project:             project,
		DailyAverage:        wakatimeapi.FormatSeconds(data.DailyAverage),
	}
	if r := data.Range; r != nil {
		out.Range = &allTimeRange{Start: r.StartText, End: r.EndText, StartDate: r.StartDate, EndDate: r.EndDate}
	}
	return modules.ToJSON(out)
}

func (m *WakaTimeModule) getStatusBar(ctx context.Context, params map[string]any) (string, error) {
	data, err := m.api.StatusBarToday(ctx)
	if err != nil {
		return "", advise(err)
	}

	out := statusBar{
		TodayTotal:        orDefault(data.GrandTotal.Text, "0 mins"),
		TodayTotalSeconds: data.GrandTotal.TotalSeconds,
		IsCached:          data.CachedAt != nil,
	}
	if len(data.Categories) > 0 {
		out.Categories = breakdown(data.Categories, topMinor)
	}
	return modules.ToJSON(out)
}

func (m *WakaTimeModule) listProjects(ctx context.Context, params map[string]any) (string, error) {
	query := modules.StringParam(params, "query")

	projects, err := m.api.Projects(ctx, query)
	if err != nil {
		return "", advise(err)
	}

	shown := projects[:min(len(projects), topProjects)]
	out := projectList{
		TotalCount: len(projects),
		Projects:   make([]projectItem, 0, len(shown)),
		Query:      query,
	}
	for _, p := range shown {
		out.Projects = append(out.Projects, projectItem{
			Name:            p.Name,
			ID:              p.ID,
			LastHeartbeatAt: p.LastHeartbeatAt,
			CreatedAt:       p.CreatedAt,
			HasPublicURL:    p.HasPublicURL,
		})
	}
	return modules.ToJSON(out)
}

func (m *WakaTimeModule) getDurations(ctx context.Context, params map[string]any) (string, error) {
	day, err := parseDateParam(params, "date", m.today())
	if err != nil {
		return "", err
	}
	project := modules.StringParam(params, "project")

	resp, err := m.api.Durations(ctx, day, project)
	if err != nil {
		return "", advise(err)
	}
	return modules.ToJSON(shapeDurations(resp, day, project))
}

func shapeDurations(resp *wakatimeapi.DurationsResponse, day time.Time, project string) dayDurations {
	loc := time.UTC
	if resp.Timezone != "" {
		if l, err := time.LoadLocation(resp.Timezone); err == nil {
			loc = l
		}
	}

	var total float64
	byProject := newTally()
	first, last := math.Inf(1), math.Inf(-1)
	for _, d := range resp.Data {
		total += d.Duration
		byProject.add(d.Project, d.Duration)
		first = math.Min(first, d.Time)
		last = math.Max(last, d.Time+d.Duration)
	}

	out := dayDurations{
		Date:          day.Format(wakatimeapi.DateLayout),
		Timezone:      resp.Timezone,
		TotalTime:     wakatimeapi.FormatSeconds(total),
		TotalSeconds:  total,
		BlockCount:    len(resp.Data),
		Projects:      byProject.top(topMajor, total),
		ProjectFilter: project,
	}
	if len(resp.Data) > 0 {
		out.FirstActivity = unixTime(first, loc).Format(time.RFC3339)
		out.LastActivity = unixTime(last, loc).Format(time.RFC3339)
	}
	return out
}

func unixTime(sec float64, loc *time.Location) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).In(loc).Truncate(time.Second)
}

func (m *WakaTimeModule) getGoals(ctx context.Context, params map[string]any) (string, error) {
	goals, err := m.api.Goals(ctx)
	if err != nil {
		return "", advise(err)
	}

	out := goalList{TotalCount: len(goals), Goals: make([]goalItem, 0, len(goals))}
	for _, g := range goals {
		out.Goals = append(out.Goals, goalItem{
			ID:            g.ID,
			Title:         g.Title,
			Status:        g.Status,
			IsEnabled:     g.IsEnabled,
			Type:          g.Type,
			Delta:         g.Delta,
			Target:        wakatimeapi.FormatSeconds(g.Seconds),
			TargetSeconds: g.Seconds,
			RangeText:     g.RangeText,
		})
	}
	return modules.ToJSON(out)
}

func (m *WakaTimeModule) getUser(ctx context.Context, params map[string]any) (string, error) {
	u, err := m.api.CurrentUser(ctx)
	if err != nil {
		return "", advise(err)
	}
	return modules.ToJSON(userProfile{
		Username:    deref(u.Username),
		DisplayName: u.DisplayName,
		Timezone:    u.Timezone,
		Plan:        u.Plan,
		LastProject: deref(u.LastProject),
		CreatedAt:   u.CreatedAt,
	})
}
