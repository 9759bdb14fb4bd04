package observability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// LokiConfig holds the Grafana Loki push settings.
type LokiConfig struct {
	URL      string
	User     string
	APIKey   string
	AppName  string
	Instance string
	Region   string
}

// Enabled reports whether every credential needed for pushing is set.
func (c LokiConfig) Enabled() bool {
	return c.URL != "" && c.User != "" && c.APIKey != ""
}

// LokiClient pushes log lines to the Loki push API in the background.
type LokiClient struct {
	url            string
	username       string
	apiKey         string
	httpClient     *http.Client
	appName        string
	instanceID     string
	instanceRegion string

	wg      sync.WaitGroup
	onError func(error)
}

// Loki Push API format
type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// NewLoki returns nil when cfg is not fully configured.
func NewLoki(cfg LokiConfig) *LokiClient {
	if !cfg.Enabled() {
		return nil
	}
	return &LokiClient{
		url:        cfg.URL + "/loki/api/v1/push",
		username:   cfg.User,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		appName:    firstNonEmpty(cfg.AppName, "wakatime-mcp-dev"),
		instanceID: firstNonEmpty(
			cfg.Instance,
			os.Getenv("INSTANCE_ID"),
			os.Getenv("RENDER_INSTANCE_ID"),
			os.Getenv("KOYEB_INSTANCE_ID"),
			"local",
		),
		instanceRegion: firstNonEmpty(
			cfg.Region,
			os.Getenv("INSTANCE_REGION"),
			os.Getenv("RENDER_REGION"),
			os.Getenv("KOYEB_REGION"),
			"local",
		),
		onError: func(err error) { fmt.Fprintln(os.Stderr, "loki:", err) },
	}
}

// Push sends one log line asynchronously. Safe on a nil client.
func (c *LokiClient) Push(labels map[string]string, data map[string]any) {
	if c == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.push(labels, data, time.Now()); err != nil {
			c.onError(err)
		}
	}()
}

// Flush waits for in-flight pushes.
func (c *LokiClient) Flush() {
	if c == nil {
		return
	}
	c.wg.Wait()
}

func (c *LokiClient) push(labels map[string]string, data map[string]any, ts time.Time) error {
	stream := make(map[string]string, len(labels)+3)
	for k, v := range labels {
		stream[k] = v
	}
	stream["app"] = c.appName
	stream["instance"] = c.instanceID
	stream["region"] = c.instanceRegion

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	req := lokiPushRequest{
		Streams: []lokiStream{
			{
				Stream: stream,
				Values: [][]string{
					{strconv.FormatInt(ts.UnixNano(), 10), string(dataJSON)},
				},
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.SetBasicAuth(c.username, c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// =============================================================================
// zap core
// =============================================================================

// lokiCore forwards zap entries to Loki. Entry fields become the JSON line,
// level and logger name become stream labels.
type lokiCore struct {
	zapcore.LevelEnabler
	client *LokiClient
	fields []zapcore.Field
}

// NewLokiCore returns a zapcore.Core writing to c.
func NewLokiCore(c *LokiClient, enab zapcore.LevelEnabler) zapcore.Core {
	return &lokiCore{LevelEnabler: enab, client: c}
}

func (lc *lokiCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &lokiCore{LevelEnabler: lc.LevelEnabler, client: lc.client}
	clone.fields = append(append(clone.fields, lc.fields...), fields...)
	return clone
}

func (lc *lokiCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if lc.Enabled(ent.Level) {
		return ce.AddCore(ent, lc)
	}
	return ce
}

func (lc *lokiCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range lc.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	data := enc.Fields
	data["msg"] = ent.Message
	if ent.Caller.Defined {
		data["caller"] = ent.Caller.TrimmedPath()
	}

	labels := map[string]string{"level": ent.Level.String()}
	if ent.LoggerName != "" {
		labels["logger"] = ent.LoggerName
	}
	if tool, ok := data["tool"].(string); ok {
		labels["tool"] = tool
	}
	if status, ok := data["status"].(string); ok {
		labels["status"] = status
	}

	lc.client.Push(labels, data)
	return nil
}

func (lc *lokiCore) Sync() error {
	lc.client.Flush()
	return nil
}
