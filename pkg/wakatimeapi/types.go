package wakatimeapi

// Records below carry only the fields the tools read. Upstream payloads hold
// many more, some of which change shape between accounts (repository, badge),
// and unknown keys are ignored by the decoder.

// StatItem is one entry of a breakdown list (languages, projects, editors, ...).
type StatItem struct {
	Name         string  `json:"name"`
	TotalSeconds float64 `json:"total_seconds"`
	Percent      float64 `json:"percent"`
	Text         string  `json:"text"`
}

// BestDay is the single most active day of a stats range.
type BestDay struct {
	Date         string  `json:"date"`
	Text         string  `json:"text"`
	TotalSeconds float64 `json:"total_seconds"`
}

// Stats is the data of /users/current/stats/{range}.
type Stats struct {
	HumanReadableRange        string     `json:"human_readable_range"`
	HumanReadableTotal        string     `json:"human_readable_total"`
	HumanReadableDailyAverage string     `json:"human_readable_daily_average"`
	TotalSeconds              float64    `json:"total_seconds"`
	DaysIncludingHolidays     int        `json:"days_including_holidays"`
	DaysMinusHolidays         int        `json:"days_minus_holidays"`
	BestDay                   *BestDay   `json:"best_day"`
	Languages                 []StatItem `json:"languages"`
	Projects                  []StatItem `json:"projects"`
	Editors                   []StatItem `json:"editors"`
	OperatingSystems          []StatItem `json:"operating_systems"`
	Categories                []StatItem `json:"categories"`
}

// GrandTotal is the total time of a summary period.
type GrandTotal struct {
	Text         string  `json:"text"`
	TotalSeconds float64 `json:"total_seconds"`
}

// SummaryRange describes the day a Summary covers.
type SummaryRange struct {
	Date string `json:"date"`
}

// Summary is one day of /users/current/summaries.
type Summary struct {
	GrandTotal GrandTotal   `json:"grand_total"`
	Range      SummaryRange `json:"range"`
	Projects   []StatItem   `json:"projects"`
	Languages  []StatItem   `json:"languages"`
	Editors    []StatItem   `json:"editors"`
	Categories []StatItem   `json:"categories"`
}

// SummariesResponse is the envelope of /users/current/summaries, one Summary
// per requested day.
type SummariesResponse struct {
	Data []Summary `json:"data"`
}

// AllTimeRange bounds the all-time total.
type AllTimeRange struct {
	StartDate string `json:"start_date"`
	StartText string `json:"start_text"`
	EndDate   string `json:"end_date"`
	EndText   string `json:"end_text"`
}

// AllTime is the data of /users/current/all_time_since_today.
type AllTime struct {
	Text         string        `json:"text"`
	TotalSeconds float64       `json:"total_seconds"`
	DailyAverage float64       `json:"daily_average"`
	IsUpToDate   bool          `json:"is_up_to_date"`
	Range        *AllTimeRange `json:"range"`
}

// StatusBar is the data of /users/current/status_bar/today.
type StatusBar struct {
	GrandTotal GrandTotal `json:"grand_total"`
	Categories []StatItem `json:"categories"`
	CachedAt   *string    `json:"cached_at"`
}

// Project is an entry of /users/current/projects. Timestamps stay as the
// upstream strings; they may be null.
type Project struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	HasPublicURL    bool    `json:"has_public_url"`
	LastHeartbeatAt *string `json:"last_heartbeat_at"`
	CreatedAt       *string `json:"created_at"`
}

// Duration is one contiguous block of activity.
type Duration struct {
	Project  string  `json:"project"`
	Time     float64 `json:"time"`     // UNIX timestamp
	Duration float64 `json:"duration"` // seconds
}

// DurationsResponse is the envelope of /users/current/durations.
type DurationsResponse struct {
	Data     []Duration `json:"data"`
	Timezone string     `json:"timezone"`
}

// Goal is an entry of /users/current/goals.
type Goal struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Status    string  `json:"status"`
	Type      string  `json:"type"`
	Delta     string  `json:"delta"`
	Seconds   float64 `json:"seconds"`
	IsEnabled bool    `json:"is_enabled"`
	RangeText string  `json:"range_text"`
}

// User is the data of /users/current.
type User struct {
	Username    *string `json:"username"`
	DisplayName string  `json:"display_name"`
	Timezone    string  `json:"timezone"`
	Plan        string  `json:"plan"`
	LastProject *string `json:"last_project"`
	CreatedAt   string  `json:"created_at"`
}

// envelope unwraps the {"data": ...} wrapper most endpoints use.
type envelope[T any] struct {
	Data T `json:"data"`
}

type statusBarEnvelope struct {
	Data     StatusBar `json:"data"`
	CachedAt *string   `json:"cached_at"`
}
