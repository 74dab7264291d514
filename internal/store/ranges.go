package store

import (
	"time"

	"repeatcal/internal/model"
)

// WeekRange returns the first and last date of the week containing day, for
// weeks starting on weekStart.
func WeekRange(day time.Time, weekStart time.Weekday) (string, string) {
	d := dateOnly(day)
	offset := (int(d.Weekday()) - int(weekStart) + 7) % 7
	first := d.AddDate(0, 0, -offset)
	return model.FormatDate(first), model.FormatDate(first.AddDate(0, 0, 6))
}

// MonthRange returns the first and last date of the month containing day.
func MonthRange(day time.Time) (string, string) {
	first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	return model.FormatDate(first), model.FormatDate(first.AddDate(0, 1, -1))
}

// ParseWeekStart maps the config value ("monday", "sunday") to a weekday.
func ParseWeekStart(s string) time.Weekday {
	if s == "monday" {
		return time.Monday
	}
	return time.Sunday
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
