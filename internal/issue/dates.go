package issue

import "time"

// Date returns the calendar date of t, in t's own location, as midnight UTC.
// All per-day queries compare values produced by Date.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole number of calendar days from a to b
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}

// MustDate parses YYYY-MM-DD, panicking on bad input. Intended for tests and constants.
func MustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func inDateRange(date, start, end time.Time) bool {
	return !date.Before(start) && !date.After(end)
}
