package tracking

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// dateLayouts are tried in order for string dates. Layouts without a zone are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"2006-01-02",
}

// ParseDate parses the date formats seen in tracking exports.
// Numeric values are epoch milliseconds.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC(), true
	}

	return time.Time{}, false
}

// parseDateValue reads a date from a JSON value that may be a string or an epoch-ms number
func parseDateValue(v gjson.Result) (time.Time, bool) {
	switch v.Type {
	case gjson.String:
		return ParseDate(v.Str)
	case gjson.Number:
		ms := v.Int()
		if ms <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	default:
		return time.Time{}, false
	}
}
