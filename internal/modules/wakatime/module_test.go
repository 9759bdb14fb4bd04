package wakatime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dpshade/wakatime-mcp/internal/modules"
	"github.com/dpshade/wakatime-mcp/pkg/wakatimeapi"
)

// fakeAPI answers from canned values and counts calls.
type fakeAPI struct {
	err       error
	stats     *wakatimeapi.Stats
	summaries *wakatimeapi.SummariesResponse
	allTime   *wakatimeapi.AllTime
	statusBar *wakatimeapi.StatusBar
	projects  []wakatimeapi.Project
	durations *wakatimeapi.DurationsResponse
	goals     []wakatimeapi.Goal
	user      *wakatimeapi.User

	calls      int
	gotRange   string
	gotStart   time.Time
	gotEnd     time.Time
	gotProject string
	gotQuery   string
	gotDay     time.Time
}

func (f *fakeAPI) CurrentUser(ctx context.Context) (*wakatimeapi.User, error) {
	f.calls++
	return f.user, f.err
}

func (f *fakeAPI) Stats(ctx context.Context, rng string) (*wakatimeapi.Stats, error) {
	f.calls++
	f.gotRange = rng
	return f.stats, f.err
}

func (f *fakeAPI) Summaries(ctx context.Context, start, end time.Time, project string) (*wakatimeapi.SummariesResponse, error) {
	f.calls++
	f.gotStart, f.gotEnd, f.gotProject = start, end, project
	return f.summaries, f.err
}

func (f *fakeAPI) AllTimeSinceToday(ctx context.Context, project string) (*wakatimeapi.AllTime, error) {
	f.calls++
	f.gotProject = project
	return f.allTime, f.err
}

func (f *fakeAPI) StatusBarToday(ctx context.Context) (*wakatimeapi.StatusBar, error) {
	f.calls++
	return f.statusBar, f.err
}

func (f *fakeAPI) Projects(ctx context.Context, query string) ([]wakatimeapi.Project, error) {
	f.calls++
	f.gotQuery = query
	return f.projects, f.err
}

func (f *fakeAPI) Durations(ctx context.Context, day time.Time, project string) (*wakatimeapi.DurationsResponse, error) {
	f.calls++
	f.gotDay, f.gotProject = day, project
	return f.durations, f.err
}

func (f *fakeAPI) Goals(ctx context.Context) ([]wakatimeapi.Goal, error) {
	f.calls++
	return f.goals, f.err
}

var fixedNow = time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)

func newTestModule(api API, opts ...Option) *WakaTimeModule {
	return New(api, append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func date(s string) time.Time {
	t, err := time.Parse(wakatimeapi.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func item(name string, secs, pct float64) wakatimeapi.StatItem {
	return wakatimeapi.StatItem{Name: name, TotalSeconds: secs, Percent: pct, Text: wakatimeapi.FormatSeconds(secs)}
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	return v
}

func TestToolDefinitions(t *testing.T) {
	m := newTestModule(&fakeAPI{})
	want := []string{
		"get_coding_stats", "get_summary", "get_all_time", "get_status_bar",
		"list_projects", "get_durations", "get_goals", "get_user",
	}
	var got []string
	for _, tool := range m.Tools() {
		got = append(got, tool.Name)
		if tool.ID != "wakatime:"+tool.Name {
			t.Errorf("tool %s has ID %q", tool.Name, tool.ID)
		}
		if _, ok := tool.InputSchema.Properties["format"]; !ok {
			t.Errorf("tool %s has no format property", tool.Name)
		}
		if _, ok := m.handlers[tool.Name]; !ok {
			t.Errorf("tool %s has no handler", tool.Name)
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tool names (-want +got):\n%s", diff)
	}
}

func TestGetCodingStats(t *testing.T) {
	var langs []wakatimeapi.StatItem
	for i := range 15 {
		langs = append(langs, item(fmt.Sprintf("Lang%02d", i), float64(1500-i*100), 6.666))
	}
	api := &fakeAPI{stats: &wakatimeapi.Stats{
		HumanReadableRange:        "Last 7 Days",
		HumanReadableTotal:        "25 hrs",
		HumanReadableDailyAverage: "3 hrs 34 mins",
		TotalSeconds:              90000,
		DaysIncludingHolidays:     7,
		DaysMinusHolidays:         5,
		BestDay:                   &wakatimeapi.BestDay{Date: "2024-03-12", Text: "6 hrs", TotalSeconds: 21600},
		Languages:                 langs,
		Editors: []wakatimeapi.StatItem{
			item("VS Code", 3600, 50), item("Vim", 1800, 25), item("Zed", 600, 8.33),
			item("Emacs", 600, 8.33), item("Helix", 300, 4.17), item("Nano", 300, 4.17),
		},
	}}
	m := newTestModule(api)

	out, err := m.ExecuteTool(context.Background(), "get_coding_stats", map[string]any{"range": "last_30_days"})
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	if api.gotRange != "last_30_days" {
		t.Errorf("range forwarded = %q", api.gotRange)
	}

	got := decode[codingStats](t, out)
	if len(got.Languages) != 10 {
		t.Fatalf("languages = %d, want 10", len(got.Languages))
	}
	for i, l := range got.Languages {
		if want := fmt.Sprintf("Lang%02d", i); l.Name != want {
			t.Errorf("languages[%d] = %s, want %s", i, l.Name, want)
		}
		if l.Percent != 6.7 {
			t.Errorf("languages[%d].percent = %v, want 6.7", i, l.Percent)
		}
	}
	if len(got.Editors) != 5 || got.Editors[4].Name != "Helix" {
		t.Errorf("editors = %+v", got.Editors)
	}
	if got.Projects == nil || got.OperatingSystems == nil || got.Categories == nil {
		t.Error("empty breakdowns must be [] not null")
	}
	wantBest := &bestDay{Date: "2024-03-12", Time: "6 hrs", TotalSeconds: 21600}
	if diff := cmp.Diff(wantBest, got.BestDay); diff != "" {
		t.Errorf("best_day (-want +got):\n%s", diff)
	}
	if !strings.Contains(out, `"projects":[]`) {
		t.Errorf("projects should serialize as []: %s", out)
	}
}

func TestGetCodingStatsFallbacks(t *testing.T) {
	api := &fakeAPI{stats: &wakatimeapi.Stats{BestDay: &wakatimeapi.BestDay{}}}
	m := newTestModule(api)

	out, err := m.ExecuteTool(context.Background(), "get_coding_stats", map[string]any{})
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	if api.gotRange != "last_7_days" {
		t.Errorf("default range = %q", api.gotRange)
	}
	got := decode[codingStats](t, out)
	if got.Range != "last_7_days" || got.TotalTime != "0 mins" || got.DailyAverage != "0 mins" {
		t.Errorf("fallbacks = %+v", got)
	}
	if strings.Contains(out, "best_day") {
		t.Errorf("best_day without a date should be omitted: %s", out)
	}
}

func TestGetSummaryDefaultsToYesterdayAndToday(t *testing.T) {
	api := &fakeAPI{summaries: &wakatimeapi.SummariesResponse{}}
	m := newTestModule(api)

	out, err := m.ExecuteTool(context.Background(), "get_summary", map[string]any{})
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	if !api.gotStart.Equal(date("2024-03-14")) || !api.gotEnd.Equal(date("2024-03-15")) {
		t.Errorf("window = %s..%s", api.gotStart, api.gotEnd)
	}
	want := emptySummary{
		StartDate: "2024-03-14",
		EndDate:   "2024-03-15",
		TotalTime: "0 mins",
		Message:   "No coding activity recorded for this period.",
	}
	if diff := cmp.Diff(want, decode[emptySummary](t, out)); diff != "" {
		t.Errorf("empty summary (-want +got):\n%s", diff)
	}
}

func TestGetSummarySingleDay(t *testing.T) {
	api := &fakeAPI{summaries: &wakatimeapi.SummariesResponse{Data: []wakatimeapi.Summary{{
		GrandTotal: wakatimeapi.GrandTotal{Text: "2 hrs", TotalSeconds: 7200},
		Range:      wakatimeapi.SummaryRange{Date: "2024-03-10"},
		Projects:   []wakatimeapi.StatItem{item("api", 5400, 75.04), item("web", 1800, 24.96)},
		Languages:  []wakatimeapi.StatItem{item("Go", 7200, 100)},
	}}}}
	m := newTestModule(api)

	out, err := m.ExecuteTool(context.Background(), "get_summary", map[string]any{
		"start_date": "2024-03-10", "end_date": "2024-03-10", "project": "api",
	})
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	if api.gotProject != "api" {
		t.Errorf("project forwarded = %q", api.gotProject)
	}
	want := daySummary{
		Date:         "2024-03-10",
		TotalTime:    "2 hrs",
		TotalSeconds: 7200,
		Projects: []timedItem{
			{"api", "1 hrs 30 mins", 75, 5400},
			{"web", "30 mins", 25, 1800},
		},
		Languages:     []breakdownItem{{"Go", "2 hrs", 100}},
		Editors:       []breakdownItem{},
		Categories:    []breakdownItem{},
		ProjectFilter: "api",
	}
	if diff := cmp.Diff(want, decode[daySummary](t, out)); diff != "" {
		t.Errorf("day summary (-want +got):\n%s", diff)
	}
}

func TestGetSummaryAggregatesRange(t *testing.T) {
	api := &fakeAPI{summaries: &wakatimeapi.SummariesResponse{Data: []wakatimeapi.Summary{
		{
			GrandTotal: wakatimeapi.GrandTotal{TotalSeconds: 3600},
			Languages:  []wakatimeapi.StatItem{item("Go", 3600, 100)},
			Projects:   []wakatimeapi.StatItem{item("api", 3600, 100)},
			Editors:    []wakatimeapi.StatItem{item("", 3600, 100)},
		},
		{
			GrandTotal: wakatimeapi.GrandTotal{TotalSeconds: 3600},
			Languages:  []wakatimeapi.StatItem{item("Go", 1800, 50), item("Python", 1800, 50)},
			Projects:   []wakatimeapi.StatItem{item("web", 1800, 50), item("api", 1800, 50)},
		},
		{
			GrandTotal: wakatimeapi.GrandTotal{TotalSeconds: 0},
		},
	}}}
	m := newTestModule(api)

	out, err := m.ExecuteTool(context.Background(), "get_summary", map[string]any{
		"start_date": "2024-03-01", "end_date": "2024-03-03",
	})
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	want := rangeSummary{
		StartDate:    "2024-03-01",
		EndDate:      "2024-03-03",
		NumDays:      3,
		TotalTime:    "2 hrs",
		TotalSeconds: 7200,
		DailyAverage: "40 mins",
		Projects: []timedItem{
			{"api", "1 hrs 30 mins", 75, 5400},
			{"web", "30 mins", 25, 1800},
		},
		Languages: []timedItem{
			{"Go", "1 hrs 30 mins", 75, 5400},
			{"Python", "30 mins", 25, 1800},
		},
		Editors: []timedItem{
			{"Unknown", "1 hrs", 50, 3600},
		},
		Categories: []timedItem{},
	}
	if diff := cmp.Diff(want, decode[rangeSummary](t, out)); diff != "" {
		t.Errorf("range summary (-want +got):\n%s", diff)
	}
}

func TestTallyTiesKeepFirstSeenOrder(t *testing.T) {
	tl := newTally()
	tl.add("b", 10)
	tl.add("a", 10)
	tl.add("c", 20)
	got := tl.top(10, 0)
	names := []string{got[0].Name, got[1].Name, got[2].Name}
	if diff := cmp.Diff([]string{"c", "b", "a"}, names); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	for _, it := range got {
		if it.Percent != 0 {
			t.Errorf("percent with zero total = %v", it.Percent)
		}
	}
}

func TestRound1(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.25, 0.2},
		{0.35, 0.3},
		{12.45, 12.4},
		{0.75, 0.8},
		{6.666, 6.7},
		{57.142857, 57.1},
		{100, 100},
		{0, 0},
	}
	for _, tt := range tests {
		if got := round1(tt.in); got != tt.want {
			t.Errorf("round1(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGetSummaryValidation(t *testing.T) {
	tests := []struct {
		name      string
		params    map[string]any
		wantError string
	}{
		{
			name:      "reversed range",
			params:    map[string]any{"start_date": "2024-03-10", "end_date": "2024-03-01"},
			wantError: "Invalid date range",
		},
		{
			name:      "end before default start",
			params:    map[string]any{"end_date": "2024-01-01"},
			wantError: "Invalid date range",
		},
		{
			name:      "malformed date",
			params:    map[string]any{"start_date": "03/10/2024"},
			wantError: "Invalid date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{summaries: &wakatimeapi.SummariesResponse{}}
			m := newTestModule(api)

			_, err := m.ExecuteTool(context.Background(), "get_summary", tt.params)
			var adv *modules.AdvisoryError
			if !errors.As(err, &adv) {
				t.Fatalf("expected advisory, got %v", err)
			}
			if adv.Kind != "validation" {
				t.Errorf("kind = %q", adv.Kind)
			}
			got := decode[advisory](t, adv.Text)
			if got.Error != tt.wantError {
				t.Errorf("error = %q, want %q", got.Error, tt.wantError)
			}
			if api.calls != 0 {
				t.Errorf("API called %d times", api.calls)
			}
		})
	}
}

func TestAdvisories(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantKind  string
		wantError string
		wantHelp  string
	}{
		{
			name:      "auth",
			err:       &wakatimeapi.Error{Kind: wakatimeapi.KindAuth, StatusCode: 401, Message: "Invalid API key"},
			wantKind:  "auth",
			wantError: "Authentication failed",
			wantHelp:  "WAKATIME_API_KEY",
		},
		{
			name:      "rate limit",
			err:       &wakatimeapi.Error{Kind: wakatimeapi.KindRateLimit, StatusCode: 429, Message: "slow down"},
			wantKind:  "rate_limit",
			wantError: "Rate limit exceeded",
			wantHelp:  "~10 requests/second",
		},
		{
			name:      "not ready",
			err:       &wakatimeapi.Error{Kind: wakatimeapi.KindNotReady, StatusCode: 202, Message: "computing"},
			wantKind:  "not_ready",
			wantError: "Stats computing",
			wantHelp:  "still calculating",
		},
		{
			name:      "api",
			err:       &wakatimeapi.Error{Kind: wakatimeapi.KindAPI, StatusCode: 500, Message: "API error (500): boom"},
			wantKind:  "api",
			wantError: "API error",
		},
		{
			name:      "foreign error",
			err:       errors.New("dial tcp: refused"),
			wantKind:  "api",
			wantError: "API error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModule(&fakeAPI{err: tt.err})
			_, err := m.ExecuteTool(context.Background(), "get_status_bar", nil)

			var adv *modules.AdvisoryError
			if !errors.As(err, &adv) {
				t.Fatalf("expected advisory, got %v", err)
			}
			if adv.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", adv.Kind, tt.wantKind)
			}
			got := decode[advisory](t, adv.Text)
			if got.Error != tt.wantError || got.Message != tt.err.Error() {
				t.Errorf("advisory = %+v", got)
			}
			if !strings.Contains(got.Help, tt.wantHelp) || (tt.wantHelp == "" && got.Help != "") {
				t.Errorf("help = %q, want %q", got.Help, tt.wantHelp)
			}
		})
	}
}

func TestClientErrorShortCircuits(t *testing.T) {
	api := &fakeAPI{}
	clientErr := &wakatimeapi.Error{Kind: wakatimeapi.KindAuth, Message: "WAKATIME_API_KEY is not set"}
	m := newTestModule(api, WithClientError(clientErr))

	for _, tool := range m.Tools() {
		_, err := m.ExecuteTool(context.Background(), tool.Name, nil)
		var adv *modules.AdvisoryError
		if !errors.As(err, &adv) || adv.Kind != "auth" {
			t.Errorf("%s: err = %v", tool.Name, err)
		}
	}
	if api.calls != 0 {
		t.Errorf("API called %d times", api.calls)
	}

	if _, err := m.ExecuteTool(context.Background(), "nope", nil); err == nil || strings.HasPrefix(err.Error(), "{") {
		t.Errorf("unknown tool err = %v", err)
	}
}

func TestGetStatusBar(t *testing.T) {
	cached := "2024-03-15T18:00:00Z"
	api := &fakeAPI{statusBar: &wakatimeapi.StatusBar{
		GrandTotal: wakatimeapi.GrandTotal{Text: "3 hrs 5 mins", TotalSeconds: 11100},
		Categories: []wakatimeapi.StatItem{item("Coding", 11100, 100)},
		CachedAt:   &cached,
	}}
	m := newTestModule(api)

	out, err := m.ExecuteTool(context.Background(), "get_status_bar", nil)
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	want := statusBar{
		TodayTotal:        "3 hrs 5 mins",
		TodayTotalSeconds: 11100,
		IsCached:          true,
		Categories:        []breakdownItem{{"Coding", "3 hrs 5 mins", 100}},
	}
	if diff := cmp.Diff(want, decode[statusBar](t, out)); diff != "" {
		t.Errorf("status bar (-want +got):\n%s", diff)
	}

	api.statusBar = &wakatimeapi.StatusBar{}
	out, err = m.ExecuteTool(context.Background(), "get_status_bar", nil)
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	if out != `{"today_total":"0 mins","today_total_seconds":0,"is_cached":false}` {
		t.Errorf("empty status bar = %s", out)
	}
}

func TestGetAllTime(t *testing.T) {
	api := &fakeAPI{allTime: &wakatimeapi.AllTime{
		Text:         "1,234 hrs",
		TotalSeconds: 4442400,
		DailyAverage: 7200,
		IsUpToDate:   true,
		Range: &wakatimeapi.AllTimeRange{
			StartDate: "2020-01-01", StartText: "Wed Jan 1st 2020",
			EndDate: "2024-03-15", EndText: "Today",
		},
	}}
	m := newTestModule(api)

	out, err := m.ExecuteTool(context.Background(), "get_all_time", map[string]any{"project": "api"})
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	want := allTime{
		TotalTime:           "1,234 hrs",
		TotalSeconds:        4442400,
		DailyAverageSeconds: 7200,
		IsUpToDate:          true,
		Range:               &allTimeRange{Start: "Wed Jan 1st 2020", End: "Today", StartDate: "2020-01-01", EndDate: "2024-03-15"},
		Project:             "api",
		DailyAverage:        "2 hrs",
	}
	if diff := cmp.Diff(want, decode[allTime](t, out)); diff != "" {
		t.Errorf("all time (-want +got):\n%s", diff)
	}
}

func TestListProjectsTruncates(t *testing.T) {
	var projects []wakatimeapi.Project
	for i := range 60 {
		projects = append(projects, wakatimeapi.Project{ID: fmt.Sprint(i), Name: fmt.Sprintf("p%d", i)})
	}
	api := &fakeAPI{projects: projects}
	m := newTestModule(api)

	out, err := m.ExecuteTool(context.Background(), "list_projects", map[string]any{"query": "p"})
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	got := decode[projectList](t, out)
	if got.TotalCount != 60 || len(got.Projects) != 50 || got.Query != "p" || api.gotQuery != "p" {
		t.Errorf("projects = %d/%d query %q", len(got.Projects), got.TotalCount, got.Query)
	}
	if got.Projects[49].Name != "p49" {
		t.Errorf("last project = %s", got.Projects[49].Name)
	}
	if !strings.Contains(out, `"last_heartbeat_at":null`) {
		t.Errorf("missing timestamps should be null: %s", out[:120])
	}
}

func TestGetDurations(t *testing.T) {
	base := float64(date("2024-03-15").Unix())
	api := &fakeAPI{durations: &wakatimeapi.DurationsResponse{
		Timezone: "UTC",
		Data: []wakatimeapi.Duration{
			{Project: "api", Time: base + 9*3600, Duration: 1800},
			{Project: "web", Time: base + 10*3600, Duration: 3600},
			{Project: "api", Time: base + 12*3600, Duration: 900},
		},
	}}
	m := newTestModule(api)

	out, err := m.ExecuteTool(context.Background(), "get_durations", nil)
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	if !api.gotDay.Equal(date("2024-03-15")) {
		t.Errorf("default day = %s", api.gotDay)
	}
	want := dayDurations{
		Date:          "2024-03-15",
		Timezone:      "UTC",
		TotalTime:     "1 hrs 45 mins",
		TotalSeconds:  6300,
		BlockCount:    3,
		FirstActivity: "2024-03-15T09:00:00Z",
		LastActivity:  "2024-03-15T12:15:00Z",
		Projects: []timedItem{
			{"web", "1 hrs", 57.1, 3600},
			{"api", "45 mins", 42.9, 2700},
		},
	}
	if diff := cmp.Diff(want, decode[dayDurations](t, out)); diff != "" {
		t.Errorf("durations (-want +got):\n%s", diff)
	}
}

func TestGetGoalsAndUser(t *testing.T) {
	username := "octo"
	api := &fakeAPI{
		goals: []wakatimeapi.Goal{{ID: "g1", Title: "Code 2 hrs daily", Status: "success", Type: "coding", Delta: "day", Seconds: 7200, IsEnabled: true}},
		user:  &wakatimeapi.User{Username: &username, DisplayName: "Octo Cat", Timezone: "UTC", Plan: "free", CreatedAt: "2020-01-01T00:00:00Z"},
	}
	m := newTestModule(api)

	out, err := m.ExecuteTool(context.Background(), "get_goals", nil)
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	goals := decode[goalList](t, out)
	if goals.TotalCount != 1 || goals.Goals[0].Target != "2 hrs" {
		t.Errorf("goals = %+v", goals)
	}

	out, err = m.ExecuteTool(context.Background(), "get_user", nil)
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	want := userProfile{Username: "octo", DisplayName: "Octo Cat", Timezone: "UTC", Plan: "free", CreatedAt: "2020-01-01T00:00:00Z"}
	if diff := cmp.Diff(want, decode[userProfile](t, out)); diff != "" {
		t.Errorf("user (-want +got):\n%s", diff)
	}
}

func TestToCompact(t *testing.T) {
	m := newTestModule(&fakeAPI{})

	stats := `{"range":"Last 7 Days","total_time":"5 hrs","daily_average":"42 mins","languages":[{"name":"Go","time":"5 hrs","percent":100,"total_seconds":18000}],"projects":[],"editors":[],"operating_systems":[],"categories":[]}`
	got := m.ToCompact("get_coding_stats", stats)
	for _, want := range []string{"# Coding stats: Last 7 Days", "- **Total**: 5 hrs", "## Languages", "| Go | 5 hrs | 100.0 |"} {
		if !strings.Contains(got, want) {
			t.Errorf("compact stats missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "## Projects") {
		t.Errorf("empty sections should be skipped:\n%s", got)
	}

	empty := `{"start_date":"2024-03-14","end_date":"2024-03-15","total_time":"0 mins","total_seconds":0,"message":"No coding activity recorded for this period."}`
	if got := m.ToCompact("get_summary", empty); !strings.Contains(got, "No coding activity") {
		t.Errorf("compact empty summary = %q", got)
	}

	day := `{"date":"2024-03-10","total_time":"2 hrs","projects":[{"name":"a|b","time":"2 hrs","percent":100}]}`
	if got := m.ToCompact("get_summary", day); !strings.Contains(got, "# Summary 2024-03-10") || !strings.Contains(got, `a\|b`) {
		t.Errorf("compact day summary = %q", got)
	}

	adv := `{"error":"Rate limit exceeded","message":"slow down"}`
	if got := m.ToCompact("get_status_bar", adv); got != adv {
		t.Errorf("advisory should pass through, got %q", got)
	}
	if got := m.ToCompact("get_user", "not json"); got != "not json" {
		t.Errorf("invalid JSON should pass through, got %q", got)
	}
}

// TestThroughRegistryAndClient runs a tool end to end against a fake upstream.
func TestThroughRegistryAndClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/current/summaries":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"data":[
				{"grand_total":{"text":"1 hr","total_seconds":3600},"range":{"date":"2024-03-14"},
				 "languages":[{"name":"Go","total_seconds":3600,"percent":100,"text":"1 hr"}]},
				{"grand_total":{"text":"30 mins","total_seconds":1800},"range":{"date":"2024-03-15"},
				 "languages":[{"name":"Go","total_seconds":1800,"percent":100,"text":"30 mins"}]}
			]}`)
		case "/users/current/stats/last_7_days":
			w.WriteHeader(http.StatusAccepted)
			fmt.Fprint(w, `{"data":{"percent_calculated":40}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := wakatimeapi.New("test-key", wakatimeapi.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("wakatimeapi.New: %v", err)
	}
	reg := modules.NewRegistry()
	if err := reg.Register(newTestModule(client)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, info := reg.Run(context.Background(), "get_summary", nil)
	if res.IsError || info.Status != modules.StatusSuccess {
		t.Fatalf("get_summary = %+v / %+v", res, info)
	}
	got := decode[rangeSummary](t, res.Content[0].Text)
	if got.TotalSeconds != 5400 || got.Languages[0].TotalSeconds != 5400 || got.Languages[0].Percent != 100 {
		t.Errorf("summary = %+v", got)
	}

	res, info = reg.Run(context.Background(), "get_coding_stats", nil)
	if res.IsError || info.Status != modules.StatusAdvisory || info.Kind != "not_ready" {
		t.Fatalf("get_coding_stats = %+v / %+v", res, info)
	}
	if adv := decode[advisory](t, res.Content[0].Text); adv.Error != "Stats computing" || !strings.Contains(adv.Message, "40%") {
		t.Errorf("advisory = %+v", adv)
	}

	// range tokens are forwarded untouched; upstream rejects unknown ones
	res, info = reg.Run(context.Background(), "get_coding_stats", map[string]any{"range": "forever"})
	if res.IsError || info.Kind != "api" {
		t.Errorf("unknown range = %+v / %+v", res, info)
	}
	if adv := decode[advisory](t, res.Content[0].Text); adv.Error != "API error" || !strings.Contains(adv.Message, "404") {
		t.Errorf("advisory = %+v", adv)
	}
}
