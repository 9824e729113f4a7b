package ragquery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ragcore/internal/ragextract"
	"ragcore/internal/ragobs"
	"ragcore/internal/ragstore"
)

// timeKeywords are the cheap prefilter tokens: if none are present the
// question skips the LLM call entirely, since most questions don't mention
// time at all (the original reports roughly 80%).
var timeKeywords = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
	"last week", "last month", "this week", "this month", "this year",
	"yesterday", "today", "after", "before", "between", "during",
	"q1", "q2", "q3", "q4",
}

// hasTimeKeyword reports whether question contains a time-keyword or a
// plausible 4-digit year.
func hasTimeKeyword(question string) bool {
	lower := strings.ToLower(question)
	for _, kw := range timeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for i := 0; i+4 <= len(lower); i++ {
		if (lower[i] == '1' || lower[i] == '2') && allDigits(lower[i:i+4]) {
			return true
		}
	}
	return false
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// TimeFilter is the strict date range extracted from a question, or the
// absence of one.
type TimeFilter struct {
	HasTimeFilter bool
	StartDate     string // YYYY-MM-DD
	EndDate       string // YYYY-MM-DD
}

type timeExtractionResponse struct {
	HasTimeFilter bool   `json:"has_time_filter"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
}

// Timestamps converts tf to inclusive Unix-second bounds: start at
// 00:00:00 UTC on StartDate, end at 23:59:59 UTC on EndDate (the original
// uses 23:59:59.999999; Unix-second granularity can't carry the
// microseconds, so the last whole second is used instead — a one-second
// widening that never excludes a chunk the original would have included).
func (tf TimeFilter) Timestamps() (start, end int64, ok bool) {
	if !tf.HasTimeFilter {
		return 0, 0, false
	}
	s, err := time.Parse("2006-01-02", tf.StartDate)
	if err != nil {
		return 0, 0, false
	}
	e, err := time.Parse("2006-01-02", tf.EndDate)
	if err != nil {
		return 0, 0, false
	}
	start = s.UTC().Unix()
	end = e.UTC().Add(24*time.Hour - time.Second).Unix()
	return start, end, true
}

// TimeExtractor calls an LLM with a "today's date is X" + few-shot prompt
// to pull a strict start/end date range out of a natural-language
// question, for hallucination-prevention via a database-level filter
// rather than trusting the model's own notion of "recent".
type TimeExtractor struct {
	Chat  ragextract.ChatClient
	Clock ragobs.Clock
}

// Extract returns (TimeFilter{}, false) whenever the question has no time
// keyword, the LLM call fails, or the response doesn't parse — matching
// the original's graceful {"has_time_filter": false} fallback on any
// error, since a missed time filter only loses the recency-accuracy boost,
// while a hallucinated one could wrongly exclude every real result.
func (t *TimeExtractor) Extract(ctx context.Context, question string) (TimeFilter, bool) {
	if !hasTimeKeyword(question) {
		return TimeFilter{}, false
	}
	clock := t.Clock
	if clock == nil {
		clock = ragobs.SystemClock{}
	}
	now := clock.Now()
	prompt := buildTimeExtractionPrompt(question, now)
	raw, err := t.Chat.Chat(ctx, []ragextract.ChatMessage{
		{Role: "system", Content: "Extract explicit date ranges from questions. Respond with JSON only."},
		{Role: "user", Content: prompt},
	}, 0, true)
	if err != nil {
		return TimeFilter{}, false
	}
	var resp timeExtractionResponse
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &resp); err != nil {
		return TimeFilter{}, false
	}
	if !resp.HasTimeFilter || resp.StartDate == "" || resp.EndDate == "" {
		return TimeFilter{}, false
	}
	return TimeFilter{HasTimeFilter: true, StartDate: resp.StartDate, EndDate: resp.EndDate}, true
}

func buildTimeExtractionPrompt(question string, now time.Time) string {
	return fmt.Sprintf(`Today's date is %s.

Determine whether the question below refers to an explicit or relative date range (a month,
quarter, year, "last week", "after January", "between March and June", etc). If it does, resolve
it to absolute calendar dates relative to today's date. If it does not mention time at all,
respond with {"has_time_filter": false}.

Examples:
Question: "What did Hayden say last month?"
Answer: {"has_time_filter": true, "start_date": "%s", "end_date": "%s"}

Question: "Show me deals from Q3 2024"
Answer: {"has_time_filter": true, "start_date": "2024-07-01", "end_date": "2024-09-30"}

Question: "What materials do we use?"
Answer: {"has_time_filter": false}

Respond with JSON only: {"has_time_filter": bool, "start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD"}

Question: %q
Answer:`, now.Format("January 2, 2006"), now.AddDate(0, -1, 0).Format("2006-01-02"), now.Format("2006-01-02"), question)
}

func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// BuildVectorFilters assembles the database-level metadata filter tree for
// the vector store from a resolved time filter, enforcing the window
// before similarity search runs rather than discarding results after the
// fact (§4.6 step 3).
func BuildVectorFilters(tf TimeFilter) []ragstore.VectorFilter {
	start, end, ok := tf.Timestamps()
	if !ok {
		return nil
	}
	return []ragstore.VectorFilter{
		{Key: "created_at_timestamp", Op: ragstore.FilterGTE, Value: start},
		{Key: "created_at_timestamp", Op: ragstore.FilterLTE, Value: end},
	}
}
