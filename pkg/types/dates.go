package types

import (
	"strings"
	"time"
)

// Date key layouts.
const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// TimestampLayout is fixed-width so stored timestamps sort as strings.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// dateLayouts are the inputs NormalizeDate understands, tried in order.
var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"20060102",
	"2006.01.02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var monthLayouts = []string{
	MonthLayout,
	"2006/01",
	"200601",
	"2006.01",
}

// NormalizeDate converts a day in any accepted layout to YYYY-MM-DD.
// Timestamps keep the calendar day of their own offset.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", invalidf("unrecognized date %q", s)
}

// NormalizeMonth converts a month, or a full date, to YYYY-MM.
func NormalizeMonth(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(MonthLayout), nil
		}
	}
	d, err := NormalizeDate(s)
	if err != nil {
		return "", invalidf("unrecognized month %q", s)
	}
	return d[:len(MonthLayout)], nil
}

// LocalDate returns the calendar day of t in t's location.
func LocalDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateTag is the compact YYYYMMDD form used as a stored file name prefix.
func DateTag(date string) string {
	return strings.ReplaceAll(date, "-", "")
}

// WeekOfMonth returns ceil(day/7) for a YYYY-MM-DD date.
func WeekOfMonth(date string) int {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return 0
	}
	return (t.Day() + 6) / 7
}

// FormatTimestamp renders a record timestamp the way both backends store it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a stored record timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
