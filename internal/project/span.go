package project

import "time"

const defaultSpanDays = 90

// estimatedSpanDays derives the project span: end minus start when both
// dates are set, end minus today when only the end is known, and a
// 90-day default otherwise.
func estimatedSpanDays(start, end *time.Time, today time.Time) int {
	switch {
	case start != nil && end != nil:
		return daysBetween(*start, *end)
	case end != nil:
		return daysBetween(today, *end)
	default:
		return defaultSpanDays
	}
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
