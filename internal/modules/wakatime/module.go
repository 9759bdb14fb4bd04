package wakatime

import (
	"context"
	"fmt"
	"time"

	"github.com/dpshade/wakatime-mcp/internal/modules"
	"github.com/dpshade/wakatime-mcp/pkg/wakatimeapi"
)

// API is the subset of the WakaTime client the tools call.
// *wakatimeapi.Client implements it.
type API interface {
	CurrentUser(ctx context.Context) (*wakatimeapi.User, error)
	Stats(ctx context.Context, rng string) (*wakatimeapi.Stats, error)
	Summaries(ctx context.Context, start, end time.Time, project string) (*wakatimeapi.SummariesResponse, error)
	AllTimeSinceToday(ctx context.Context, project string) (*wakatimeapi.AllTime, error)
	StatusBarToday(ctx context.Context) (*wakatimeapi.StatusBar, error)
	Projects(ctx context.Context, query string) ([]wakatimeapi.Project, error)
	Durations(ctx context.Context, day time.Time, project string) (*wakatimeapi.DurationsResponse, error)
	Goals(ctx context.Context) ([]wakatimeapi.Goal, error)
}

var _ API = (*wakatimeapi.Client)(nil)

// WakaTimeModule implements the Module interface for the WakaTime API
type WakaTimeModule struct {
	api       API
	clientErr error
	now       func() time.Time
	handlers  map[string]toolHandler
}

type toolHandler func(ctx context.Context, params map[string]any) (string, error)

// Option configures a WakaTimeModule.
type Option func(*WakaTimeModule)

// WithClock replaces time.Now for date defaults.
func WithClock(now func() time.Time) Option {
	return func(m *WakaTimeModule) { m.now = now }
}

// WithClientError marks the client as unavailable. Every tool then answers
// with the advisory for err instead of calling the API.
func WithClientError(err error) Option {
	return func(m *WakaTimeModule) { m.clientErr = err }
}

// New creates a new WakaTimeModule backed by api.
func New(api API, opts ...Option) *WakaTimeModule {
	m := &WakaTimeModule{api: api, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	m.handlers = map[string]toolHandler{
		"get_coding_stats": m.getCodingStats,
		"get_summary":      m.getSummary,
		"get_all_time":     m.getAllTime,
		"get_status_bar":   m.getStatusBar,
		"list_projects":    m.listProjects,
		"get_durations":    m.getDurations,
		"get_goals":        m.getGoals,
		"get_user":         m.getUser,
	}
	return m
}

// Name returns the module name
func (m *WakaTimeModule) Name() string {
	return "wakatime"
}

// Description returns the module description
func (m *WakaTimeModule) Description() string {
	return "WakaTime API - coding activity stats, summaries, projects, goals"
}

// APIVersion returns the WakaTime API version
func (m *WakaTimeModule) APIVersion() string {
	return "v1"
}

// Tools returns all available tools
func (m *WakaTimeModule) Tools() []modules.Tool {
	return toolDefinitions
}

// ExecuteTool executes a tool by name and returns JSON response
func (m *WakaTimeModule) ExecuteTool(ctx context.Context, name string, params map[string]any) (string, error) {
	handler, ok := m.handlers[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	if m.clientErr != nil {
		return "", advise(m.clientErr)
	}
	return handler(ctx, params)
}

// ToCompact converts JSON result to Markdown.
// Implements modules.CompactConverter interface
func (m *WakaTimeModule) ToCompact(toolName string, jsonResult string) string {
	return formatCompact(toolName, jsonResult)
}

// today returns the current calendar date as a UTC midnight.
func (m *WakaTimeModule) today() time.Time {
	return civilDate(m.now())
}

func civilDate(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
