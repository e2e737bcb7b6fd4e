package chart

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cortexai/cortexbi/internal/models"
)

// temporalHints mark an x-axis column as chronological when its lowercased
// name contains any of them.
var temporalHints = []string{"date", "time", "day", "month", "year"}

// IsTemporalKey reports whether key names a date or time column.
func IsTemporalKey(key string) bool {
	lower := strings.ToLower(key)
	for _, h := range temporalHints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"2006-01",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2006",
	"January 2006",
	"2006",
}

// ParseTime interprets v as a point in time.
func ParseTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// SortChronologically orders rows ascending by the parsed value of key.
// Rows whose value parses as a time come first, in time order; the rest
// follow, compared numerically or as strings. The sort is stable.
func SortChronologically(rows []models.Row, key string) {
	parsed := make([]bool, len(rows))
	times := make([]time.Time, len(rows))
	for i, r := range rows {
		times[i], parsed[i] = ParseTime(r[key])
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(x, y int) bool {
		i, j := idx[x], idx[y]
		switch {
		case parsed[i] && parsed[j]:
			return times[i].Before(times[j])
		case parsed[i] != parsed[j]:
			return parsed[i]
		}
		a, b := rows[i][key], rows[j][key]
		if na, okA := toFloat(a); okA {
			if nb, okB := toFloat(b); okB {
				return na < nb
			}
		}
		return fmt.Sprint(a) < fmt.Sprint(b)
	})

	sorted := make([]models.Row, len(rows))
	for n, i := range idx {
		sorted[n] = rows[i]
	}
	copy(rows, sorted)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
