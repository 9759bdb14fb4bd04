package wakatime

import (
	"encoding/json"

	"github.com/dpshade/wakatime-mcp/internal/modules"
	"github.com/dpshade/wakatime-mcp/pkg/wakatimeapi"
)

// advisory is the tool answer for an expected failure.
type advisory struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Help    string `json:"help,omitempty"`
}

const kindValidation = "validation"

// advise maps a client error to its advisory.
func advise(err error) *modules.AdvisoryError {
	kind := wakatimeapi.KindOf(err)
	a := advisory{Message: err.Error()}
	switch kind {
	case wakatimeapi.KindAuth:
		a.Error = "Authentication failed"
		a.Help = "Set WAKATIME_API_KEY environment variable with your API key from https://wakatime.com/settings/api-key"
	case wakatimeapi.KindRateLimit:
		a.Error = "Rate limit exceeded"
		a.Help = "WakaTime allows ~10 requests/second. Wait a moment and try again."
	case wakatimeapi.KindNotReady:
		a.Error = "Stats computing"
		a.Help = "WakaTime is still calculating your stats. Try again in a few seconds."
	default:
		a.Error = "API error"
	}
	return newAdvisory(kind.String(), a)
}

// validationAdvisory is returned for bad input, before any API call.
func validationAdvisory(title, message string) *modules.AdvisoryError {
	return newAdvisory(kindValidation, advisory{Error: title, Message: message})
}

func newAdvisory(kind string, a advisory) *modules.AdvisoryError {
	b, err := json.Marshal(a)
	if err != nil {
		b = []byte(`{"error":"API error"}`)
	}
	return &modules.AdvisoryError{Kind: kind, Text: string(b)}
}
