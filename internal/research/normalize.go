package research

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDurationPattern   = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)
	clockDurationPattern = regexp.MustCompile(`^(?:(\d+):)?(\d+):(\d{2})$`)
)

// DecodeDuration converts an ISO-8601 duration such as PT1H2M3S into
// seconds; a leading day group counts 86400 each (P1DT2H is 93600). The
// H:MM:SS form produced by FormatDuration is accepted too.
// Anything else decodes to 0.
func DecodeDuration(raw string) int64 {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return 0
	}
	if match := isoDurationPattern.FindStringSubmatch(value); match != nil {
		days, ok1 := durationGroup(match[1])
		hours, ok2 := durationGroup(match[2])
		minutes, ok3 := durationGroup(match[3])
		seconds, ok4 := durationGroup(match[4])
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return 0
		}
		return nonNegative(((days*24+hours)*60+minutes)*60 + seconds)
	}
	if match := clockDurationPattern.FindStringSubmatch(value); match != nil {
		hours, ok1 := durationGroup(match[1])
		minutes, ok2 := durationGroup(match[2])
		seconds, ok3 := durationGroup(match[3])
		if !ok1 || !ok2 || !ok3 {
			return 0
		}
		return nonNegative((hours*60+minutes)*60 + seconds)
	}
	return 0
}

// nonNegative clamps wrapped-around totals from absurd inputs.
func nonNegative(value int64) int64 {
	if value < 0 {
		return 0
	}
	return value
}

func durationGroup(raw string) (int64, bool) {
	if raw == "" {
		return 0, true
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}

// FormatDuration renders seconds as H:MM:SS, or M:SS under an hour.
func FormatDuration(seconds int64) string {
	if seconds <= 0 {
		return "-"
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// ParsePublishedAt returns nil when the timestamp cannot be parsed.
func ParsePublishedAt(raw string) *time.Time {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	parsed = parsed.UTC()
	return &parsed
}

func AgeHours(publishedAt *time.Time, now time.Time) (float64, bool) {
	if publishedAt == nil {
		return 0, false
	}
	return now.Sub(*publishedAt).Hours(), true
}

// ViewsPerHour is views divided by age in hours, rounded to two decimals.
// Unknown or future publish times yield 0.
func ViewsPerHour(viewCount int64, publishedAt *time.Time, now time.Time) float64 {
	age, ok := AgeHours(publishedAt, now)
	if !ok || age <= 0 || viewCount <= 0 {
		return 0
	}
	value := roundTo2(float64(viewCount) / age)
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0
	}
	return value
}

func RecencyBucket(publishedAt *time.Time, now time.Time) string {
	if publishedAt == nil {
		return "unknown"
	}
	days := now.Sub(*publishedAt).Hours() / 24
	switch {
	case days < 1:
		return "today"
	case days < 30:
		return fmt.Sprintf("%d days ago", int(days))
	case days < 365:
		return fmt.Sprintf("%d months ago", int(days/30))
	default:
		return fmt.Sprintf("%d years ago", int(days/365))
	}
}

func CompactViews(views int64) string {
	switch {
	case views >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(views)/1_000_000)
	case views >= 1_000:
		return fmt.Sprintf("%.1fK", float64(views)/1_000)
	default:
		return strconv.FormatInt(views, 10)
	}
}

func roundTo2(value float64) float64 {
	return math.Round(value*100) / 100
}
