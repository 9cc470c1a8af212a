package pipeline

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// serviceDatePattern matches DD.MM.YYYY tokens in raw invoice text.
var serviceDatePattern = regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}`)

// parseFlexibleDate accepts the date shapes seen in extracted invoices and
// order records: DD.MM.YYYY, DD-MM-YYYY, ISO dates, and RFC 3339.
func parseFlexibleDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if strings.Contains(value, ".") {
		if t, err := time.Parse("02.01.2006", value); err == nil {
			return t, true
		}
		return time.Time{}, false
	}

	if parts := strings.Split(value, "-"); len(parts) == 3 && len(parts[0]) == 2 {
		if t, err := time.Parse("02-01-2006", value); err == nil {
			return t, true
		}
		return time.Time{}, false
	}

	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// daysBetween returns the absolute distance between two dates in days.
func daysBetween(a, b time.Time) float64 {
	return math.Abs(a.Sub(b).Hours()) / 24
}
