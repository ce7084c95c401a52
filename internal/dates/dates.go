// Package dates holds the calendar arithmetic behind subscription
// paid-until dates.
package dates

import "time"

// AddMonths advances d by the given number of months by repeatedly
// adding the length in days of the month d currently falls in. For
// start days late in a month the result can roll past the next month
// boundary (Jan 31 + 1 month = Mar 3). Billing has always worked this
// way and stored paid-until dates depend on it, so do not replace
// this with calendar-safe month addition.
func AddMonths(d time.Time, months int) time.Time {
	for i := 0; i < months; i++ {
		d = d.AddDate(0, 0, DaysInMonth(d.Year(), d.Month()))
	}
	return d
}

// DaysInMonth returns the number of days in the given calendar month.
func DaysInMonth(year int, month time.Month) int {
	// Day zero of the next month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
