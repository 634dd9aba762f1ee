package mapper

import (
	"strings"
	"time"
)

// dateLayouts in priority order: ISO first, then day-first layouts
// (the exports are Chilean), then month-first, then two-digit years.
// A value like 10/26/2024 fails the day-first layout on the invalid
// month and falls through to the month-first one.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"02-01-2006 15:04:05",
	"02-01-2006",
	"01-02-2006 15:04:05",
	"01-02-2006",
	"2006/01/02",
	"02.01.2006",
	"2006.01.02",
	"02/01/06 15:04",
	"02/01/06",
	"01/02/06 15:04",
	"01/02/06",
	"01-02-06 15:04",
	"01-02-06",
	"02-01-06",
	// Last resort for timezone-bearing ISO strings some exports emit
	// after a tooling change. Anything else reads as a missing date.
	time.RFC3339,
}

// ParseDate parses a timestamp in any of the formats the exports are
// known to carry. Unparseable input reports ok=false, never an error;
// a bad date is a missing date as far as the pipeline is concerned.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
