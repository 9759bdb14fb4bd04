// Package wakatimeapi provides a typed client for the WakaTime REST API v1.
package wakatimeapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultBaseURL is the public WakaTime API.
	DefaultBaseURL = "https://api.wakatime.com/api/v1"
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 30 * time.Second
	// APIKeyEnv is read when New is called without a key.
	APIKeyEnv = "WAKATIME_API_KEY"
	// DateLayout is the calendar date format used by query parameters.
	DateLayout = "2006-01-02"

	maxBodySize = 8 << 20
)

// Ranges accepted by Stats.
var Ranges = []string{"last_7_days", "last_30_days", "last_6_months", "last_year", "all_time"}

var tracer = otel.Tracer("github.com/dpshade/wakatime-mcp/pkg/wakatimeapi")

// Client is an authenticated WakaTime API client. It holds no mutable state
// after New returns and may be shared between goroutines.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	authHeader string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the upstream host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout sets the per-request deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a client for apiKey, falling back to $WAKATIME_API_KEY. It fails
// with a KindAuth error when no key is available.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv(APIKeyEnv)
	}
	if apiKey == "" {
		return nil, &Error{
			Kind: KindAuth,
			Message: APIKeyEnv + " environment variable not set. " +
				"Get your API key from https://wakatime.com/settings/api-key",
		}
	}

	c := &Client{
		baseURL:    DefaultBaseURL,
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(apiKey)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured upstream root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request performs one authenticated call and decodes a 2xx body into out.
// There is no retry.
func (c *Client) request(ctx context.Context, method, endpoint string, query url.Values, out any) (err error) {
	ctx, span := tracer.Start(ctx, "wakatime "+method+" "+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("wakatime.endpoint", endpoint),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String("wakatime.error_kind", KindOf(err).String()))
		}
		span.End()
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return transportError(ctx, errors.Wrap(err, "read response"))
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode >= 400 {
		return newStatusError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{
			Kind:       KindMalformed,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("malformed response from %s: %v", endpoint, err),
			Err:        err,
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	return c.request(ctx, http.MethodGet, endpoint, query, out)
}

// CurrentUser returns the authenticated user.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var env envelope[User]
	if err := c.get(ctx, "/users/current", nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Stats returns aggregate stats for one of Ranges. The token is forwarded as is.
func (c *Client) Stats(ctx context.Context, rng string) (*Stats, error) {
	var env envelope[Stats]
	if err := c.get(ctx, "/users/current/stats/"+url.PathEscape(rng), nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Summaries returns one summary per day in [start, end].
func (c *Client) Summaries(ctx context.Context, start, end time.Time, project string) (*SummariesResponse, error) {
	q := url.Values{}
	q.Set("start", start.Format(DateLayout))
	q.Set("end", end.Format(DateLayout))
	if project != "" {
		q.Set("project", project)
	}
	var resp SummariesResponse
	if err := c.get(ctx, "/users/current/summaries", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AllTimeSinceToday returns the total time since account creation.
func (c *Client) AllTimeSinceToday(ctx context.Context, project string) (*AllTime, error) {
	q := url.Values{}
	if project != "" {
		q.Set("project", project)
	}
	var env envelope[AllTime]
	if err := c.get(ctx, "/users/current/all_time_since_today", q, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// StatusBarToday returns today's status bar snapshot.
func (c *Client) StatusBarToday(ctx context.Context) (*StatusBar, error) {
	var env statusBarEnvelope
	if err := c.get(ctx, "/users/current/status_bar/today", nil, &env); err != nil {
		return nil, err
	}
	if env.Data.CachedAt == nil {
		env.Data.CachedAt = env.CachedAt
	}
	return &env.Data, nil
}

// Projects lists projects, optionally filtered by a search query.
func (c *Client) Projects(ctx context.Context, query string) ([]Project, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	var env envelope[[]Project]
	if err := c.get(ctx, "/users/current/projects", q, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// Durations returns the activity blocks of a single day.
func (c *Client) Durations(ctx context.Context, day time.Time, project string) (*DurationsResponse, error) {
	q := url.Values{}
	q.Set("date", day.Format(DateLayout))
	if project != "" {
		q.Set("project", project)
	}
	var resp DurationsResponse
	if err := c.get(ctx, "/users/current/durations", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Goals returns the user's coding goals.
func (c *Client) Goals(ctx context.Context) ([]Goal, error) {
	var env envelope[[]Goal]
	if err := c.get(ctx, "/users/current/goals", nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}
