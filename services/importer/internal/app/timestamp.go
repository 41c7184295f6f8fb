package app

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Timestamp layouts WhatsApp exports are known to use, tried in order.
// First successful parse wins; there is no cross-line validation, so
// genuinely ambiguous dates (day and month both <= 12) resolve to whichever
// layout matches first.
var timestampLayouts = []string{
	"02.01.2006, 15:04:05",
	"02.01.2006, 15:04",
	"02/01/2006, 15:04:05",
	"02/01/2006, 15:04",
	"1/2/06, 3:04:05 PM",
	"1/2/06, 3:04 PM",
	"02.01.06, 15:04:05",
	"02.01.06, 15:04",
}

// Permissive fallback for dates the fixed layouts reject, such as
// single-digit days ("5.10.2024, 13:03:10"). Day-first.
var looseTimestampRe = regexp.MustCompile(
	`^(\d{1,2})[./](\d{1,2})[./](\d{2,4}),?\s*(\d{1,2}):(\d{2})(?::(\d{2}))?$`)

// parseTimestamp converts a bracketed timestamp substring to an instant.
// Exports carry no zone, so the result is zone-naive (UTC by convention).
// Returns false when nothing matches; callers treat that as "not a new
// logical message".
func parseTimestamp(raw string) (time.Time, bool) {
	s := strings.TrimSpace(cleanInvisible(raw))
	s = strings.Trim(s, "[]")
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}

	m := looseTimestampRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	second := 0
	if m[6] != "" {
		second, _ = strconv.Atoi(m[6])
	}
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), true
}
