package domain

import "time"

// Clock returns the current instant. Services take one so tests can pin "today".
type Clock func() time.Time

func SystemClock() time.Time { return time.Now() }

// Date truncates t to midnight UTC of its calendar day.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today is the calendar date of the clock reading.
func (c Clock) Today() time.Time {
	return Date(c())
}
