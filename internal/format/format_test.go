package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0K"},
		{1500, "1.5K"},
		{12345, "12.3K"},
		{999999, "1000.0K"},
		{1000000, "1.0M"},
		{2500000, "2.5M"},
		{-5, "-5"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Number(tt.in), "Number(%d)", tt.in)
	}
}

func TestDate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Mar 7, 2024", Date(time.Date(2024, time.March, 7, 15, 4, 5, 0, time.UTC)))
	assert.Equal(t, "", Date(time.Time{}))
}

func TestTruncateText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "hello...", TruncateText("hello world", 5))
	assert.Equal(t, "héllo...", TruncateText("héllo wörld", 5))

	long := make([]rune, 150)
	for i := range long {
		long[i] = 'a'
	}
	out := TruncateText(string(long), 0)
	assert.Len(t, []rune(out), DefaultTruncateLength+3)
}

func TestRelativeTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ago  time.Duration
		want string
	}{
		{"seconds", 10 * time.Second, "less than a minute ago"},
		{"one minute", 70 * time.Second, "1 minute ago"},
		{"minutes", 5 * time.Minute, "5 minutes ago"},
		{"an hour", 60 * time.Minute, "about 1 hour ago"},
		{"hours", 3 * time.Hour, "about 3 hours ago"},
		{"a day", 30 * time.Hour, "1 day ago"},
		{"days", 5 * 24 * time.Hour, "5 days ago"},
		{"a month", 35 * 24 * time.Hour, "about 1 month ago"},
		{"months", 150 * 24 * time.Hour, "5 months ago"},
		{"a year", 370 * 24 * time.Hour, "about 1 year ago"},
		{"over a year", 540 * 24 * time.Hour, "over 1 year ago"},
		{"almost two years", 700 * 24 * time.Hour, "almost 2 years ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RelativeTime(now.Add(-tt.ago), now))
		})
	}

	assert.Equal(t, "in 5 minutes", RelativeTime(now.Add(5*time.Minute), now))
	assert.Equal(t, "", RelativeTime(time.Time{}, now))
}
