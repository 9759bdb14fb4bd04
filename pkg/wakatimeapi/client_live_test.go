package wakatimeapi_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/dpshade/wakatime-mcp/pkg/wakatimeapi"
)

// These tests call the real WakaTime API.
// Set WAKATIME_LIVE_API_KEY to run.
//
// Usage:
//   WAKATIME_LIVE_API_KEY=waka_xxx go test ./pkg/wakatimeapi/ -run Live -v -count=1

func newLiveClient(t *testing.T) *wakatimeapi.Client {
	t.Helper()
	key := os.Getenv("WAKATIME_LIVE_API_KEY")
	if key == "" {
		t.Skip("WAKATIME_LIVE_API_KEY not set")
	}
	c, err := wakatimeapi.New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestLiveCurrentUser(t *testing.T) {
	c := newLiveClient(t)
	u, err := c.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	fmt.Printf("User: %s (tz=%s, plan=%s)\n", u.DisplayName, u.Timezone, u.Plan)
}

func TestLiveStatusBar(t *testing.T) {
	c := newLiveClient(t)
	bar, err := c.StatusBarToday(context.Background())
	if err != nil {
		t.Fatalf("StatusBarToday: %v", err)
	}
	fmt.Printf("Today: %s (cached=%v)\n", bar.GrandTotal.Text, bar.CachedAt != nil)
}

func TestLiveSummaries(t *testing.T) {
	c := newLiveClient(t)
	end := time.Now()
	start := end.AddDate(0, 0, -2)
	res, err := c.Summaries(context.Background(), start, end, "")
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	fmt.Printf("Summaries: %d days\n", len(res.Data))
	for _, d := range res.Data {
		fmt.Printf("  - %s: %s\n", d.Range.Date, d.GrandTotal.Text)
	}
}
