// Package format renders numbers, dates and text for display.
package format

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// DefaultTruncateLength is the length used by TruncateText when max is not positive.
const DefaultTruncateLength = 100

const (
	minutesInDay   = 1440
	minutesInMonth = 43200
)

// Number abbreviates counts: 1500 -> "1.5K", 2500000 -> "2.5M", 999 -> "999".
func Number(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1000:
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	default:
		return strconv.Itoa(n)
	}
}

// Date renders t as "Jan 2, 2006".
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

// TruncateText shortens text to max runes, appending "..." when it was cut.
func TruncateText(text string, max int) string {
	if max <= 0 {
		max = DefaultTruncateLength
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

// RelativeTime describes the distance between t and now in words, with an
// "ago" or "in" suffix ("5 minutes ago", "about 2 hours ago").
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	distance := Distance(d)
	if d < 0 {
		return "in " + distance
	}
	return distance + " ago"
}

// Distance describes the absolute length of d in words.
func Distance(d time.Duration) string {
	seconds := math.Abs(d.Seconds())
	minutes := int(math.Round(seconds / 60))

	switch {
	case minutes < 2:
		if minutes == 0 {
			return "less than a minute"
		}
		return "1 minute"
	case minutes < 45:
		return fmt.Sprintf("%d minutes", minutes)
	case minutes < 90:
		return "about 1 hour"
	case minutes < minutesInDay:
		return fmt.Sprintf("about %d hours", int(math.Round(float64(minutes)/60)))
	case minutes < 2520:
		return "1 day"
	case minutes < minutesInMonth:
		return fmt.Sprintf("%d days", int(math.Round(float64(minutes)/minutesInDay)))
	case minutes < 2*minutesInMonth:
		months := int(math.Round(float64(minutes) / minutesInMonth))
		if months <= 1 {
			return "about 1 month"
		}
		return fmt.Sprintf("about %d months", months)
	}

	months := minutes / minutesInMonth
	if months < 12 {
		return fmt.Sprintf("%d months", int(math.Round(float64(minutes)/minutesInMonth)))
	}

	years := months / 12
	rest := months % 12
	switch {
	case rest < 3:
		return plural("about", years, "year")
	case rest < 9:
		return plural("over", years, "year")
	default:
		return plural("almost", years+1, "year")
	}
}

func plural(prefix string, n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%s 1 %s", prefix, unit)
	}
	return fmt.Sprintf("%s %d %ss", prefix, n, unit)
}
