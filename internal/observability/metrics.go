package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/dpshade/wakatime-mcp"

// Metrics holds the tool call instruments. A nil *Metrics records nothing.
type Metrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics registers the instruments on the global MeterProvider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithProvider(otel.GetMeterProvider())
}

// NewMetricsWithProvider registers the instruments on mp.
func NewMetricsWithProvider(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	calls, err := meter.Int64Counter("wakatime_mcp.tool.calls",
		metric.WithDescription("Number of tool calls by tool and status"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("wakatime_mcp.tool.duration",
		metric.WithDescription("Tool call latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{calls: calls, duration: duration}, nil
}

// RecordToolCall records one finished tool call.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	m.calls.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(d.Microseconds())/1000, attrs)
}
