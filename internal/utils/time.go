package utils

import (
	"time"
)

// HoursToDuration converts fractional hours, as accepted by the API, into a duration.
func HoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

// MillisUntil returns the milliseconds from now until t, negative when t is past.
func MillisUntil(now, t time.Time) int64 {
	return t.Sub(now).Milliseconds()
}
