// Package services runs the background jobs around the transaction set: the
// spreadsheet sync outbox and the monthly fixed expense materialisation.
package services

import (
	"time"

	"budgetcal/internal/core"
)

// DuenessChecker decides whether a periodic job should run now given the
// time it last ran.
type DuenessChecker interface {
	IsDue(lastRun, now time.Time) bool
}

// MonthlyChecker is due once per calendar month, on or after Day. Days past
// the end of the month are clamped to its last day.
type MonthlyChecker struct {
	Day int
}

// TargetDay returns the day the job runs in the given month.
func (c MonthlyChecker) TargetDay(year, month int) int {
	day := c.Day
	if day < 1 {
		day = 1
	}
	if last := core.DaysIn(year, month); day > last {
		day = last
	}
	return day
}

func (c MonthlyChecker) IsDue(lastRun, now time.Time) bool {
	if !lastRun.IsZero() && lastRun.Year() == now.Year() && lastRun.Month() == now.Month() {
		return false
	}
	return now.Day() >= c.TargetDay(now.Year(), int(now.Month()))
}
