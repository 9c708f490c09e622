package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// zonedLayouts carry their own offset or zone name.
var zonedLayouts = []string{
	time.RFC3339,
	time.RFC1123,
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	time.RFC822Z,
	time.RFC822,
}

// localLayouts have no zone and are read as UTC.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp understands the publish time formats the sources emit:
// RFC1123 (GMT or numeric zone), RFC3339 with or without fractional seconds,
// ISO-8601 without a zone (UTC assumed), Unix epoch seconds and bare dates.
func ParseTimestamp(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if isDigits(s) {
		secs, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(secs, 0).UTC(), true
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeTimestamp rewrites raw as RFC3339 in UTC when it can be parsed
// and returns it unchanged otherwise.
func NormalizeTimestamp(raw string) string {
	t, ok := ParseTimestamp(raw)
	if !ok {
		return raw
	}
	return FormatTimestamp(t)
}

// FormatTimestamp is the canonical PublishedAt encoding.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func plural(format string, n int) string {
	if n != 1 {
		format += "s"
	}
	return fmt.Sprintf(format, n)
}
