package wakatimeapi

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// Kind classifies a failed API call.
type Kind int

const (
	// KindAPI is the catch-all: any other status >= 400, transport failure or deadline.
	KindAPI Kind = iota
	// KindAuth: missing API key or upstream 401.
	KindAuth
	// KindRateLimit: upstream 429.
	KindRateLimit
	// KindNotReady: upstream 202, stats are still being computed.
	KindNotReady
	// KindMalformed: 2xx response whose body is not the expected JSON.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindNotReady:
		return "not_ready"
	case KindMalformed:
		return "malformed_response"
	default:
		return "api"
	}
}

// Error is returned by every Client method that fails.
type Error struct {
	Kind       Kind
	StatusCode int // 0 when no response was received
	Message    string
	// PercentCalculated is set for KindNotReady.
	PercentCalculated float64
	Err               error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the Kind of err. Errors not produced by this package are KindAPI.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindAPI
}

func newStatusError(status int, body []byte) *Error {
	switch {
	case status == 401:
		return &Error{Kind: KindAuth, StatusCode: status, Message: "Invalid API key"}
	case status == 202:
		percent := percentCalculated(body)
		return &Error{
			Kind:              KindNotReady,
			StatusCode:        status,
			PercentCalculated: percent,
			Message: fmt.Sprintf(
				"Stats are still being computed (%s%% complete). Try again in a few seconds.",
				formatPercent(percent)),
		}
	case status == 429:
		return &Error{
			Kind:       KindRateLimit,
			StatusCode: status,
			Message: "Rate limit exceeded. WakaTime allows ~10 requests/second. " +
				"Please wait a moment before trying again.",
		}
	default:
		return &Error{
			Kind:       KindAPI,
			StatusCode: status,
			Message:    fmt.Sprintf("API error (%d): %s", status, errorMessage(body)),
		}
	}
}

func transportError(ctx context.Context, err error) *Error {
	msg := fmt.Sprintf("request failed: %v", err)
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		msg = "request timed out: WakaTime did not respond in time"
	}
	return &Error{Kind: KindAPI, Message: msg, Err: err}
}

func formatPercent(p float64) string {
	if p == float64(int64(p)) {
		return fmt.Sprintf("%d", int64(p))
	}
	return fmt.Sprintf("%g", p)
}
