package core

import (
	"strconv"
	"strings"
	"time"
)

// UnknownMonth buckets rows whose date could not be parsed.
const UnknownMonth = "Unknown"

// MonthOrder is the fixed categorical order of the month axis.
var MonthOrder = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthRank returns the position of a month name on the calendar axis
// (0 for January), len(MonthOrder) for UnknownMonth and -1 otherwise.
func MonthRank(name string) int {
	for i, m := range MonthOrder {
		if m == name {
			return i
		}
	}
	if name == UnknownMonth {
		return len(MonthOrder)
	}
	return -1
}

// CanonicalMonth resolves a user-supplied month ("mar", "March", "3") to its
// full name. ok is false when the value names no month.
func CanonicalMonth(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if strings.EqualFold(s, UnknownMonth) {
		return UnknownMonth, true
	}
	for i, m := range MonthOrder {
		if len(s) >= 3 && len(s) <= len(m) && strings.EqualFold(s, m[:len(s)]) {
			return m, true
		}
		if n, err := strconv.Atoi(s); err == nil && n == i+1 {
			return m, true
		}
	}
	return "", false
}

// QuarterOf returns the calendar quarter (1-4) of a month name, or 0 for
// UnknownMonth and unrecognised names.
func QuarterOf(month string) int {
	r := MonthRank(month)
	if r < 0 || r >= len(MonthOrder) {
		return 0
	}
	return r/3 + 1
}

// MonthName returns the full month name of t.
func MonthName(t time.Time) string {
	return t.Month().String()
}

// SortMonths returns the distinct month names of in ordered on the calendar
// axis, with UnknownMonth last and unrecognised names dropped.
func SortMonths(in []string) []string {
	seen := make([]bool, len(MonthOrder)+1)
	for _, m := range in {
		if r := MonthRank(m); r >= 0 {
			seen[r] = true
		}
	}
	out := make([]string, 0, len(in))
	for i, ok := range seen {
		if !ok {
			continue
		}
		if i == len(MonthOrder) {
			out = append(out, UnknownMonth)
		} else {
			out = append(out, MonthOrder[i])
		}
	}
	return out
}
