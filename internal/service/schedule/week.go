// Package schedule holds the calendar arithmetic and store helpers shared by
// the therapist and client scheduling services.
package schedule

import (
	"time"

	"github.com/jwalitptl/renova-api/internal/model"
)

// Clock returns the current time. Services take one so tests can pin "today".
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time {
	return time.Now()
}

// StartOfWeek returns midnight of the Sunday on or before day, in day's location.
func StartOfWeek(day time.Time) time.Time {
	y, m, d := day.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	return midnight.AddDate(0, 0, -int(midnight.Weekday()))
}

// WeekRange returns the half-open interval [start, end) of the week containing day.
func WeekRange(day time.Time) (time.Time, time.Time) {
	start := StartOfWeek(day)
	return start, start.AddDate(0, 0, 7)
}

// SlotStart returns the start of the given weekday/hour slot in the week
// containing reference.
func SlotStart(reference time.Time, weekday time.Weekday, hour int) time.Time {
	start := StartOfWeek(reference)
	return time.Date(start.Year(), start.Month(), start.Day()+int(weekday), hour, 0, 0, 0, start.Location())
}

// BuildWeekGrid places each block in its [weekday][hour] cell. Blocks outside
// the week, blocks not starting on the hour and blocks shorter than an hour
// are left out. The week ends seven calendar days after weekStart, so DST
// weeks are 167 or 169 hours long.
func BuildWeekGrid(weekStart time.Time, blocks []*model.ScheduleBlock) model.WeekGrid {
	var grid model.WeekGrid
	weekEnd := weekStart.AddDate(0, 0, 7)

	for _, b := range blocks {
		start := b.StartAt.In(weekStart.Location())
		end := b.EndAt.In(weekStart.Location())

		if start.Before(weekStart) || !start.Before(weekEnd) || end.After(weekEnd) {
			continue
		}
		if start.Minute() != 0 || start.Second() != 0 || start.Nanosecond() != 0 {
			continue
		}
		if end.Sub(start) < model.BlockDuration {
			continue
		}
		// On a fall-back day two instants share a wall-clock hour; the
		// earlier block keeps the cell.
		cell := &grid[start.Weekday()][start.Hour()]
		if *cell == nil || start.Before((*cell).StartAt) {
			*cell = b
		}
	}
	return grid
}
