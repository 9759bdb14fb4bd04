// Package usage records tool calls to an optional PostgreSQL usage log.
package usage

import (
	"context"
	"time"
)

// Entry is one finished tool call.
type Entry struct {
	Caller    string
	Tool      string
	Status    string
	ErrorKind string
	Duration  time.Duration
	RequestID string
}

// ToolCount is the number of calls of one tool.
type ToolCount struct {
	Tool  string
	Count int64
}

// Recorder records tool calls. Record must not block the caller.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}
